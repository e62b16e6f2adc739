package heldorders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/counterline/poscore/internal/cart"
	"github.com/counterline/poscore/pkg/db/models"
	"github.com/counterline/poscore/pkg/enums"
	pkgerrors "github.com/counterline/poscore/pkg/errors"
)

type liveCart interface {
	Get(ctx context.Context) (*models.CartRecord, error)
	Clear(ctx context.Context) (*models.CartRecord, error)
	ReplaceSnapshot(ctx context.Context, snapshot cart.Snapshot) (*models.CartRecord, error)
}

// Service parks and restores carts. A held order is consumed by exactly one
// resume; discard is permanent.
type Service interface {
	Hold(ctx context.Context, input HoldInput) (*models.HeldOrder, error)
	Resume(ctx context.Context, id uuid.UUID) (*models.CartRecord, error)
	Discard(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]models.HeldOrder, error)
}

type service struct {
	repo  *Repository
	carts liveCart
	now   func() time.Time
}

// NewService builds the held-orders service.
func NewService(repo *Repository, carts liveCart) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("held-order repository required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	return &service{repo: repo, carts: carts, now: time.Now}, nil
}

// HoldInput names the parked order and optionally ties it to a customer.
type HoldInput struct {
	Label         string
	CustomerName  *string
	CustomerPhone *string
	Notes         *string
	Tags          []string
}

// Hold snapshots the live cart, pricing included, and clears it.
func (s *service) Hold(ctx context.Context, input HoldInput) (*models.HeldOrder, error) {
	if input.Label == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "held order label is required")
	}

	record, err := s.carts.Get(ctx)
	if err != nil {
		return nil, err
	}
	snapshot := cart.SnapshotOf(record)
	if snapshot.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot hold an empty cart")
	}

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding cart snapshot")
	}

	order := &models.HeldOrder{
		Label:         input.Label,
		CustomerName:  input.CustomerName,
		CustomerPhone: input.CustomerPhone,
		Notes:         input.Notes,
		Tags:          input.Tags,
		Snapshot:      raw,
		HeldAt:        s.now().UTC(),
	}
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parking order")
	}

	if _, err := s.carts.Clear(ctx); err != nil {
		return nil, err
	}
	return order, nil
}

// Resume consumes the held order and restores its snapshot as the live cart.
// The live cart must be empty; park or clear it first.
func (s *service) Resume(ctx context.Context, id uuid.UUID) (*models.CartRecord, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case enums.HeldOrderStatusResumed:
		return nil, alreadyResumed(id)
	case enums.HeldOrderStatusDiscarded:
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "held order not found")
	}

	live, err := s.carts.Get(ctx)
	if err != nil {
		return nil, err
	}
	if len(live.Items) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "live cart is not empty; hold or clear it before resuming")
	}

	var snapshot cart.Snapshot
	if err := json.Unmarshal(order.Snapshot, &snapshot); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreCorrupt, err, "decoding held-order snapshot")
	}

	// The status guard settles a double-resume race before the cart changes.
	if err := s.repo.Transition(ctx, id, enums.HeldOrderStatusResumed, s.now().UTC()); err != nil {
		if errors.Is(err, ErrAlreadyTransitioned) {
			return nil, alreadyResumed(id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "consuming held order")
	}

	return s.carts.ReplaceSnapshot(ctx, snapshot)
}

// Discard permanently retires a held order.
func (s *service) Discard(ctx context.Context, id uuid.UUID) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Transition(ctx, id, enums.HeldOrderStatusDiscarded, s.now().UTC()); err != nil {
		if errors.Is(err, ErrAlreadyTransitioned) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "held order already resumed or discarded")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "discarding held order")
	}
	return nil
}

// List returns the orders still parked, oldest first.
func (s *service) List(ctx context.Context) ([]models.HeldOrder, error) {
	orders, err := s.repo.ListHeld(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing held orders")
	}
	return orders, nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.HeldOrder, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "held order id is required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "held order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading held order")
	}
	return order, nil
}

func alreadyResumed(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("held order %s was already resumed", id)).
		WithReason(pkgerrors.ReasonAlreadyResumed)
}
