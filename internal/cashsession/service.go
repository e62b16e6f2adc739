package cashsession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/counterline/poscore/pkg/db/models"
	"github.com/counterline/poscore/pkg/enums"
	pkgerrors "github.com/counterline/poscore/pkg/errors"
)

const businessDateLayout = "2006-01-02"

// Service is the drawer state machine: NoSession, Open, Closed. One session
// per business day; a closed session never reopens.
type Service interface {
	Open(ctx context.Context, openingBalanceCents int64) (*models.CashSession, error)
	RecordMovement(ctx context.Context, direction enums.CashDirection, amountCents int64, reason string) (*models.CashSession, error)
	Close(ctx context.Context, countedCents int64) (*models.CashSession, error)
	Current(ctx context.Context) (*models.CashSession, error)
	RecordCashSale(ctx context.Context, tx *gorm.DB, amountCents int64) error
}

type service struct {
	repo *Repository
	now  func() time.Time
}

// NewService builds the cash-session service.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cash-session repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

// Open starts today's session with the float counted into the drawer.
func (s *service) Open(ctx context.Context, openingBalanceCents int64) (*models.CashSession, error) {
	if openingBalanceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "opening balance must not be negative")
	}

	today := s.today()
	existing, err := s.findToday(ctx, today)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Status == enums.CashSessionStatusClosed {
			return nil, pkgerrors.Session(pkgerrors.ReasonSessionClosed,
				"today's session is closed; it cannot be reopened")
		}
		return nil, pkgerrors.Session(pkgerrors.ReasonSessionAlreadyOpen,
			"a session is already open for today")
	}

	session := &models.CashSession{
		BusinessDate:        today,
		OpeningBalanceCents: openingBalanceCents,
		OpenedAt:            s.now().UTC(),
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "opening cash session")
	}
	return session, nil
}

// RecordMovement appends a manual cash-in or cash-out entry.
func (s *service) RecordMovement(ctx context.Context, direction enums.CashDirection, amountCents int64, reason string) (*models.CashSession, error) {
	if !direction.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown cash direction %q", direction))
	}
	if amountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "movement amount must be positive")
	}
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "movement reason is required")
	}

	session, err := s.requireOpen(ctx)
	if err != nil {
		return nil, err
	}

	movement := &models.CashMovement{
		SessionID:   session.ID,
		Direction:   direction,
		AmountCents: amountCents,
		Reason:      reason,
	}
	if err := s.repo.AddMovement(ctx, movement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording cash movement")
	}
	session.Movements = append(session.Movements, *movement)
	return session, nil
}

// Close counts the drawer and seals the session. Expected and variance are
// computed here once and never recomputed.
func (s *service) Close(ctx context.Context, countedCents int64) (*models.CashSession, error) {
	if countedCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "counted balance must not be negative")
	}

	session, err := s.requireOpen(ctx)
	if err != nil {
		return nil, err
	}

	expected := expectedCents(session)
	variance := countedCents - expected
	closedAt := s.now().UTC()

	session.CountedCents = &countedCents
	session.ExpectedCents = &expected
	session.VarianceCents = &variance
	session.ClosedAt = &closedAt

	if err := s.repo.CloseWithVersion(ctx, session, session.Version); err != nil {
		if errors.Is(err, ErrStaleSession) {
			return nil, pkgerrors.Session(pkgerrors.ReasonSessionClosed, "session was closed concurrently")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "closing cash session")
	}
	session.Status = enums.CashSessionStatusClosed
	return session, nil
}

// Current returns today's session in whatever state it is in.
func (s *service) Current(ctx context.Context) (*models.CashSession, error) {
	session, err := s.findToday(ctx, s.today())
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no cash session for today")
	}
	return session, nil
}

// RecordCashSale folds a committed cash sale into the open drawer, creating
// today's session with a zero float if the operator never opened one. Runs
// inside the finalizer's transaction.
func (s *service) RecordCashSale(ctx context.Context, tx *gorm.DB, amountCents int64) error {
	if amountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cash sale amount must be positive")
	}

	repo := s.repo.WithTx(tx)
	today := s.today()
	session, err := repo.FindByDate(ctx, today)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cash session")
		}
		session = &models.CashSession{
			BusinessDate: today,
			OpenedAt:     s.now().UTC(),
		}
		if err := repo.Create(ctx, session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "auto-opening cash session")
		}
	}
	if session.Status == enums.CashSessionStatusClosed {
		return pkgerrors.Session(pkgerrors.ReasonSessionClosed,
			"today's session is closed; open tomorrow's drawer before taking cash")
	}

	if err := repo.AddCashSale(ctx, session.ID, amountCents); err != nil {
		if errors.Is(err, ErrStaleSession) {
			return pkgerrors.Session(pkgerrors.ReasonSessionClosed, "session closed while committing the sale")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating drawer total")
	}
	return nil
}

func (s *service) requireOpen(ctx context.Context) (*models.CashSession, error) {
	session, err := s.findToday(ctx, s.today())
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, pkgerrors.New(pkgerrors.CodeSession, "no cash session is open for today")
	}
	if session.Status == enums.CashSessionStatusClosed {
		return nil, pkgerrors.Session(pkgerrors.ReasonSessionClosed, "today's session is closed")
	}
	return session, nil
}

func (s *service) findToday(ctx context.Context, today string) (*models.CashSession, error) {
	session, err := s.repo.FindByDate(ctx, today)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cash session")
	}
	return session, nil
}

func (s *service) today() string {
	return s.now().Format(businessDateLayout)
}

// expectedCents is the drawer reconciliation: float plus cash sales plus
// manual ins minus manual outs.
func expectedCents(session *models.CashSession) int64 {
	expected := session.OpeningBalanceCents + session.CashSalesCents
	for _, movement := range session.Movements {
		switch movement.Direction {
		case enums.CashDirectionIn:
			expected += movement.AmountCents
		case enums.CashDirectionOut:
			expected -= movement.AmountCents
		}
	}
	return expected
}
