package payment

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"time"

	errors "github.com/frahmantamala/pix-deposit/internal"
	"github.com/frahmantamala/pix-deposit/internal/core/events"
	paymentgatewaytypes "github.com/frahmantamala/pix-deposit/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/pix-deposit/internal/paymentgateway"
	"github.com/frahmantamala/pix-deposit/internal/poller"
	"github.com/frahmantamala/pix-deposit/internal/session"
)

type Service struct {
	sessions session.Store
	receipts ReceiptParser
	fetcher  poller.Fetcher
	hub      *Hub
	logger   *slog.Logger
}

func NewService(sessions session.Store, receipts ReceiptParser, fetcher poller.Fetcher, hub *Hub, logger *slog.Logger) *Service {
	return &Service{
		sessions: sessions,
		receipts: receipts,
		fetcher:  fetcher,
		hub:      hub,
		logger:   logger,
	}
}

var _ ServiceAPI = (*Service)(nil)

// Details reads the PaymentInfo stored for the session at submission.
func (s *Service) Details(ctx context.Context, sessionKey string) (*session.PaymentInfo, error) {
	if sessionKey == "" {
		return nil, errors.ErrPaymentInfoMissing
	}

	info, err := s.sessions.Load(ctx, sessionKey)
	if err != nil {
		if stdErrors.Is(err, session.ErrNotFound) {
			return nil, errors.ErrPaymentInfoMissing
		}
		s.logger.Error("failed to load payment info", "error", err)
		return nil, errors.NewInternalError("failed to load payment info", err)
	}
	return info, nil
}

// DetailsFromReceipt opens a receipt token issued for paymentID.
func (s *Service) DetailsFromReceipt(ctx context.Context, paymentID, token string) (*session.PaymentInfo, error) {
	info, err := s.receipts.Parse(token)
	if err != nil {
		return nil, err
	}
	if info.ID != paymentID {
		s.logger.Warn("receipt does not belong to payment", "payment_id", paymentID)
		return nil, errors.ErrInvalidReceipt
	}
	return info, nil
}

// Status performs one fetch against the status endpoint, outside any poller.
func (s *Service) Status(ctx context.Context, paymentID string) (*paymentgatewaytypes.PaymentStatusResponse, error) {
	if paymentID == "" {
		return nil, errors.NewValidationFieldError("id", "payment id is required", errors.ErrCodeValidationFailed)
	}

	resp, err := s.fetcher.GetPaymentStatus(ctx, paymentID)
	if err != nil {
		s.logger.Warn("payment status check failed", "payment_id", paymentID, "error", err)
		if stdErrors.Is(err, paymentgateway.ErrMissingPaymentID) {
			return nil, errors.NewValidationFieldError("id", "payment id is required", errors.ErrCodeValidationFailed)
		}
		return nil, errors.NewExternalError("payment status unavailable", errors.ErrCodeStatusCheckFailed, err)
	}
	return resp, nil
}

func (s *Service) Subscribe(ctx context.Context, paymentID string) (<-chan poller.Snapshot, func(), error) {
	ch, unsubscribe, err := s.hub.Subscribe(paymentID)
	if err != nil {
		if stdErrors.Is(err, poller.ErrMissingPaymentID) {
			return nil, nil, errors.NewValidationFieldError("id", "payment id is required", errors.ErrCodeValidationFailed)
		}
		return nil, nil, errors.NewInternalError("failed to watch payment", err)
	}
	return ch, unsubscribe, nil
}

// Watch forwards snapshots to fn until the payment resolves or ctx ends.
func (s *Service) Watch(ctx context.Context, paymentID string, fn func(poller.Snapshot)) error {
	ch, unsubscribe, err := s.Subscribe(ctx, paymentID)
	if err != nil {
		return err
	}
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snapshot, ok := <-ch:
			if !ok {
				return nil
			}
			fn(snapshot)
			if snapshot.State.IsTerminal() {
				return nil
			}
		}
	}
}

// SnapshotPublisher turns poller snapshots into bus events.
type SnapshotPublisher struct {
	bus    *events.EventBus
	logger *slog.Logger
}

func NewSnapshotPublisher(bus *events.EventBus, logger *slog.Logger) *SnapshotPublisher {
	return &SnapshotPublisher{bus: bus, logger: logger}
}

// Observe is a Hub Observer.
func (p *SnapshotPublisher) Observe(previous poller.State, snapshot poller.Snapshot) {
	ctx := context.Background()

	if snapshot.State != poller.StateError && snapshot.State != previous {
		p.publish(ctx, events.NewPaymentStatusChangedEvent(snapshot.PaymentID, string(previous), string(snapshot.State)))
	}

	if snapshot.Resolved {
		var amount int64
		if snapshot.Payment != nil {
			amount = snapshot.Payment.Amount
		}
		p.publish(ctx, events.NewPaymentResolvedEvent(snapshot.PaymentID, string(snapshot.State), amount, snapshot.Attempt, snapshot.ObservedAt))
	}

	if snapshot.PersistentFailure {
		p.publish(ctx, events.NewPaymentPollFailingEvent(snapshot.PaymentID, snapshot.ConsecutiveErrors, snapshot.Error))
	}
}

func (p *SnapshotPublisher) publish(ctx context.Context, event events.Event) {
	if err := p.bus.Publish(ctx, event); err != nil {
		p.logger.Error("failed to publish payment event",
			"event_type", event.EventType(),
			"error", err)
	}
}

// LedgerUpdater keeps the ledger row in step with status events.
type LedgerUpdater struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewLedgerUpdater(repo RepositoryAPI, logger *slog.Logger) *LedgerUpdater {
	return &LedgerUpdater{repo: repo, logger: logger}
}

func (u *LedgerUpdater) Register(bus *events.EventBus) {
	bus.Subscribe(events.EventTypePaymentStatusChanged, u.HandleStatusChanged)
	bus.Subscribe(events.EventTypePaymentResolved, u.HandleResolved)
}

func (u *LedgerUpdater) HandleStatusChanged(ctx context.Context, event events.Event) error {
	changed, ok := event.(*events.PaymentStatusChangedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	if paymentgatewaytypes.PaymentStatus(changed.Status).IsTerminal() {
		// written with its resolution time by HandleResolved
		return nil
	}
	return u.update(ctx, changed.PaymentID, changed.Status, nil)
}

func (u *LedgerUpdater) HandleResolved(ctx context.Context, event events.Event) error {
	resolved, ok := event.(*events.PaymentResolvedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type %T", event)
	}
	resolvedAt := resolved.ResolvedAt
	if resolvedAt.IsZero() {
		resolvedAt = time.Now()
	}
	return u.update(ctx, resolved.PaymentID, resolved.Status, &resolvedAt)
}

func (u *LedgerUpdater) update(ctx context.Context, paymentID, status string, resolvedAt *time.Time) error {
	err := u.repo.UpdateStatus(ctx, paymentID, status, resolvedAt)
	if stdErrors.Is(err, ErrPaymentNotFound) {
		u.logger.Debug("payment not in ledger, skipping status update", "payment_id", paymentID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to update ledger for payment %s: %w", paymentID, err)
	}
	u.logger.Info("ledger status updated", "payment_id", paymentID, "status", status)
	return nil
}
