package payments

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/counterline/poscore/pkg/config"
	"github.com/counterline/poscore/pkg/db/models"
	"github.com/counterline/poscore/pkg/enums"
	pkgerrors "github.com/counterline/poscore/pkg/errors"
	"github.com/counterline/poscore/pkg/logger"
	"github.com/counterline/poscore/pkg/metrics"
	"github.com/counterline/poscore/pkg/provider"
	"github.com/counterline/poscore/pkg/square"
)

type cartReader interface {
	Get(ctx context.Context) (*models.CartRecord, error)
}

type redirectProvider interface {
	FeeCents(amountCents int64) int64
	Initiate(ctx context.Context, amountCents int64, currency, reference string) (*provider.InitiateResult, error)
	GetStatus(ctx context.Context, transactionID string) (enums.ProviderStatus, error)
}

type tapReader interface {
	ReaderPresent() bool
	ChargeTap(ctx context.Context, params square.TapChargeParams) (*square.TapCharge, error)
}

type creditProfiles interface {
	CustomerProfile(ctx context.Context, id uuid.UUID) (*models.Customer, error)
}

type displayEmitter interface {
	Emit(ctx context.Context, eventType enums.DisplayEventType, payload any)
}

// StartInput selects the payment method for the sale in progress.
type StartInput struct {
	Method      enums.PaymentMethod
	CustomerID  uuid.UUID
	TapSourceID string
}

// VerificationInput is the callback payload for a scan-verify payment. It is
// accepted only on an exact amount-and-reference match.
type VerificationInput struct {
	Reference   string
	AmountCents int64
	Currency    enums.Currency
	TokenID     string
}

// Service drives one payment attempt at a time to a terminal outcome.
// Switching methods cancels the previous in-flight attempt; a succeeded
// attempt is terminal and can only be consumed by the finalizer.
type Service interface {
	Start(ctx context.Context, input StartInput) (*Attempt, error)
	TenderCash(ctx context.Context, receivedCents int64) (*Attempt, error)
	AwaitRedirect(ctx context.Context) (*Attempt, error)
	HandleVerification(ctx context.Context, input VerificationInput) (*Attempt, error)
	Cancel(ctx context.Context) error
	Current(ctx context.Context) (*Attempt, error)
	TakeSucceeded(ctx context.Context) (*Attempt, error)
}

type service struct {
	carts    cartReader
	intents  *Repository
	redirect redirectProvider
	tap      tapReader
	credit   creditProfiles
	display  displayEmitter
	metrics  *metrics.TerminalMetrics
	logg     *logger.Logger
	cfg      config.ProviderConfig

	mu      sync.Mutex
	current *Attempt

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewService builds the payment orchestrator. The tap reader may report
// absent; the method is then refused, not hidden failures later.
func NewService(
	carts cartReader,
	intents *Repository,
	redirect redirectProvider,
	tap tapReader,
	credit creditProfiles,
	display displayEmitter,
	terminalMetrics *metrics.TerminalMetrics,
	logg *logger.Logger,
	cfg config.ProviderConfig,
) (Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart reader required")
	}
	if intents == nil {
		return nil, fmt.Errorf("payment-intent repository required")
	}
	if redirect == nil {
		return nil, fmt.Errorf("redirect provider required")
	}
	if tap == nil {
		return nil, fmt.Errorf("tap reader required")
	}
	if credit == nil {
		return nil, fmt.Errorf("credit profile loader required")
	}
	if display == nil {
		return nil, fmt.Errorf("display emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("payments logger required")
	}
	return &service{
		carts:    carts,
		intents:  intents,
		redirect: redirect,
		tap:      tap,
		credit:   credit,
		display:  display,
		metrics:  terminalMetrics,
		logg:     logg,
		cfg:      cfg,
		now:      time.Now,
		sleep:    sleepWithContext,
	}, nil
}

// Start opens an attempt for the live cart's total. An in-flight attempt for
// another method is cancelled first; a succeeded one blocks until finalized.
func (s *service) Start(ctx context.Context, input StartInput) (*Attempt, error) {
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown payment method %q", input.Method))
	}

	s.mu.Lock()
	if s.current != nil {
		if s.current.Succeeded() {
			s.mu.Unlock()
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
				"a succeeded payment is awaiting finalization; it cannot be replaced")
		}
		if !s.current.Status.Terminal() {
			s.cancelLocked(ctx)
		}
	}

	record, err := s.carts.Get(ctx)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if len(record.Items) == 0 {
		s.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	attempt := &Attempt{
		ID:          uuid.New(),
		Method:      input.Method,
		Status:      enums.AttemptStatusInProgress,
		AmountCents: record.TotalCents,
		Currency:    record.Currency,
		StartedAt:   s.now().UTC(),
	}
	s.current = attempt
	s.mu.Unlock()

	s.display.Emit(ctx, enums.DisplayEventPaymentStart, map[string]any{
		"method":       input.Method,
		"amount_cents": attempt.AmountCents,
	})

	switch input.Method {
	case enums.PaymentMethodCash:
		return s.startCash(attempt)
	case enums.PaymentMethodMobileMoney:
		return s.startRedirect(ctx, attempt)
	case enums.PaymentMethodQR:
		return s.startQR(attempt)
	case enums.PaymentMethodTap:
		return s.startTap(ctx, attempt, input.TapSourceID)
	case enums.PaymentMethodStoreCredit:
		return s.startCredit(ctx, attempt, input.CustomerID)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown payment method %q", input.Method))
	}
}

func (s *service) startCash(attempt *Attempt) (*Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt.Context = CashContext{}
	return attempt.clone(), nil
}

// startRedirect persists the pending-payment record before the customer
// leaves for the provider page, then initiates.
func (s *service) startRedirect(ctx context.Context, attempt *Attempt) (*Attempt, error) {
	fee := s.redirect.FeeCents(attempt.AmountCents)
	charged := attempt.AmountCents + fee
	correlationID := uuid.NewString()

	intent := &models.PaymentIntent{
		CorrelationID: correlationID,
		Method:        enums.PaymentMethodMobileMoney,
		AmountCents:   attempt.AmountCents,
		FeeCents:      fee,
		Currency:      attempt.Currency,
	}
	if err := s.intents.Create(ctx, intent); err != nil {
		s.failAttempt(ctx, attempt, "persisting payment intent failed")
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting payment intent")
	}

	initiated, err := s.redirect.Initiate(ctx, charged, attempt.Currency.String(), correlationID)
	if err != nil {
		s.failAttempt(ctx, attempt, "provider initiation failed")
		return nil, err
	}
	if err := s.intents.SetProviderTx(ctx, correlationID, initiated.TransactionID, initiated.PaymentURL); err != nil {
		s.failAttempt(ctx, attempt, "recording provider transaction failed")
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recording provider transaction")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	attempt.Context = RedirectContext{
		CorrelationID: correlationID,
		TransactionID: initiated.TransactionID,
		PaymentURL:    initiated.PaymentURL,
		FeeCents:      fee,
		ChargedCents:  charged,
	}
	return attempt.clone(), nil
}

func (s *service) startQR(attempt *Attempt) (*Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt.Context = QRContext{Reference: uuid.NewString()}
	return attempt.clone(), nil
}

// startTap resolves synchronously: authorization is the reader's job; a
// detected tap either settles or the attempt fails.
func (s *service) startTap(ctx context.Context, attempt *Attempt, sourceID string) (*Attempt, error) {
	if !s.tap.ReaderPresent() {
		s.dropAttempt(attempt)
		return nil, pkgerrors.Payment(pkgerrors.ReasonMethodUnavailable,
			"no contactless reader paired with this terminal")
	}
	if sourceID == "" {
		s.dropAttempt(attempt)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tap source token required")
	}

	charge, err := s.tap.ChargeTap(ctx, square.TapChargeParams{
		AmountCents:    attempt.AmountCents,
		Currency:       attempt.Currency.String(),
		SourceID:       sourceID,
		ReferenceID:    attempt.ID.String(),
		IdempotencyKey: attempt.ID.String(),
	})
	if err != nil {
		s.failAttempt(ctx, attempt, "tap capture failed")
		return nil, err
	}

	return s.succeedAttempt(ctx, attempt, TapContext{
		PaymentID:  charge.PaymentID,
		ReceiptURL: charge.ReceiptURL,
	}), nil
}

// startCredit requires headroom on the customer's tab.
func (s *service) startCredit(ctx context.Context, attempt *Attempt, customerID uuid.UUID) (*Attempt, error) {
	if customerID == uuid.Nil {
		s.dropAttempt(attempt)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required for store credit")
	}

	profile, err := s.credit.CustomerProfile(ctx, customerID)
	if err != nil {
		s.dropAttempt(attempt)
		return nil, err
	}
	if profile.CurrentBalanceCents+attempt.AmountCents > profile.CreditLimitCents {
		s.failAttempt(ctx, attempt, "credit limit exceeded")
		return nil, pkgerrors.Payment(pkgerrors.ReasonCreditLimitExceeded,
			fmt.Sprintf("sale of %d would push balance past the limit of %d",
				attempt.AmountCents, profile.CreditLimitCents))
	}

	return s.succeedAttempt(ctx, attempt, CreditContext{CustomerID: customerID}), nil
}

// TenderCash resolves a cash attempt: enough money succeeds with change,
// short money is refused and the attempt stays open for another tender.
func (s *service) TenderCash(ctx context.Context, receivedCents int64) (*Attempt, error) {
	if receivedCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "received amount must be positive")
	}

	s.mu.Lock()
	attempt := s.current
	if attempt == nil || attempt.Method != enums.PaymentMethodCash || attempt.Status != enums.AttemptStatusInProgress {
		s.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no cash payment in progress")
	}
	if receivedCents < attempt.AmountCents {
		s.mu.Unlock()
		return nil, pkgerrors.Payment(pkgerrors.ReasonInsufficientPayment,
			fmt.Sprintf("received %d is short of total %d", receivedCents, attempt.AmountCents))
	}
	s.mu.Unlock()

	return s.succeedAttempt(ctx, attempt, CashContext{
		ReceivedCents: receivedCents,
		ChangeCents:   receivedCents - attempt.AmountCents,
	}), nil
}

// AwaitRedirect polls the provider until a terminal status or the poll
// timeout. Timeout fails the attempt but leaves the sale retryable.
func (s *service) AwaitRedirect(ctx context.Context) (*Attempt, error) {
	s.mu.Lock()
	attempt := s.current
	if attempt == nil || attempt.Method != enums.PaymentMethodMobileMoney || attempt.Status != enums.AttemptStatusInProgress {
		s.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no redirect payment in progress")
	}
	redirectCtx, ok := attempt.Context.(RedirectContext)
	s.mu.Unlock()
	if !ok || redirectCtx.TransactionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "redirect attempt missing provider transaction")
	}

	deadline := s.now().Add(s.cfg.PollTimeout)
	for {
		s.mu.Lock()
		status := attempt.Status
		s.mu.Unlock()
		if status == enums.AttemptStatusCancelled {
			return attempt.clone(), nil
		}

		providerStatus, err := s.redirect.GetStatus(ctx, redirectCtx.TransactionID)
		if err == nil && providerStatus.Terminal() {
			s.resolveIntent(ctx, redirectCtx.CorrelationID, providerStatus)
			if providerStatus == enums.ProviderStatusCompleted {
				return s.succeedAttempt(ctx, attempt, redirectCtx), nil
			}
			s.failAttempt(ctx, attempt, fmt.Sprintf("provider reported %s", providerStatus))
			return attempt.clone(), nil
		}
		if err != nil {
			s.logg.Warn(ctx, "provider poll failed: "+err.Error())
		}

		if s.now().After(deadline) {
			s.resolveIntent(ctx, redirectCtx.CorrelationID, enums.ProviderStatusExpired)
			s.failAttempt(ctx, attempt, "poll window elapsed without a terminal provider status")
			return attempt.clone(), nil
		}
		if err := s.sleep(ctx, s.cfg.PollEvery); err != nil {
			return nil, err
		}
	}
}

// HandleVerification completes a scan-verify attempt only on an exact amount
// and reference match. Anything else is rejected and the attempt stays open.
func (s *service) HandleVerification(ctx context.Context, input VerificationInput) (*Attempt, error) {
	s.mu.Lock()
	attempt := s.current
	if attempt == nil || attempt.Method != enums.PaymentMethodQR || attempt.Status != enums.AttemptStatusInProgress {
		s.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no scan-to-pay payment in progress")
	}
	qrCtx, _ := attempt.Context.(QRContext)
	s.mu.Unlock()

	if input.Reference != qrCtx.Reference ||
		input.AmountCents != attempt.AmountCents ||
		(input.Currency != "" && input.Currency != attempt.Currency) {
		s.logg.Warn(s.logg.WithField(ctx, "reference", input.Reference),
			"rejected mismatched payment verification")
		return nil, pkgerrors.New(pkgerrors.CodePayment, "verification does not match the pending payment")
	}

	qrCtx.TokenID = input.TokenID
	return s.succeedAttempt(ctx, attempt, qrCtx), nil
}

// Cancel discards the in-flight attempt. Success is terminal and cannot be
// cancelled.
func (s *service) Cancel(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.Status.Terminal() {
		if s.current != nil && s.current.Succeeded() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "a succeeded payment cannot be cancelled")
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict, "no payment in progress")
	}
	s.cancelLocked(ctx)
	return nil
}

// Current returns a copy of the attempt in flight, if any.
func (s *service) Current(_ context.Context) (*Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no payment attempt")
	}
	return s.current.clone(), nil
}

// TakeSucceeded hands the successful attempt to the finalizer and destroys
// it. The attempt never outlives its terminal outcome.
func (s *service) TakeSucceeded(_ context.Context) (*Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || !s.current.Succeeded() {
		return nil, pkgerrors.New(pkgerrors.CodePayment, "no successful payment attempt to finalize")
	}
	attempt := s.current
	s.current = nil
	return attempt, nil
}

// cancelLocked marks the current attempt cancelled. Callers hold s.mu.
func (s *service) cancelLocked(ctx context.Context) {
	attempt := s.current
	attempt.Status = enums.AttemptStatusCancelled
	resolvedAt := s.now().UTC()
	attempt.ResolvedAt = &resolvedAt
	s.metrics.IncAttempt(attempt.Method.String(), enums.AttemptStatusCancelled.String())

	if redirectCtx, ok := attempt.Context.(RedirectContext); ok && redirectCtx.CorrelationID != "" {
		s.resolveIntent(ctx, redirectCtx.CorrelationID, enums.ProviderStatusCancelled)
	}
	s.current = nil
}

func (s *service) succeedAttempt(ctx context.Context, attempt *Attempt, methodCtx MethodContext) *Attempt {
	s.mu.Lock()
	attempt.Context = methodCtx
	attempt.Status = enums.AttemptStatusSucceeded
	resolvedAt := s.now().UTC()
	attempt.ResolvedAt = &resolvedAt
	clone := attempt.clone()
	s.mu.Unlock()

	s.metrics.IncAttempt(attempt.Method.String(), enums.AttemptStatusSucceeded.String())
	s.display.Emit(ctx, enums.DisplayEventPaymentSuccess, map[string]any{
		"method":       attempt.Method,
		"amount_cents": attempt.AmountCents,
	})
	return clone
}

func (s *service) failAttempt(ctx context.Context, attempt *Attempt, note string) {
	s.mu.Lock()
	attempt.Status = enums.AttemptStatusFailed
	attempt.FailureNote = note
	resolvedAt := s.now().UTC()
	attempt.ResolvedAt = &resolvedAt
	if s.current == attempt {
		s.current = nil
	}
	s.mu.Unlock()

	s.metrics.IncAttempt(attempt.Method.String(), enums.AttemptStatusFailed.String())
	s.display.Emit(ctx, enums.DisplayEventPaymentFailed, map[string]any{
		"method": attempt.Method,
		"note":   note,
	})
}

// dropAttempt discards an attempt that never really started, without the
// failure ceremony.
func (s *service) dropAttempt(attempt *Attempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == attempt {
		s.current = nil
	}
}

func (s *service) resolveIntent(ctx context.Context, correlationID string, status enums.ProviderStatus) {
	if err := s.intents.ResolveStatus(ctx, correlationID, status, s.now().UTC()); err != nil {
		s.logg.Error(ctx, "resolving payment intent", err)
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
