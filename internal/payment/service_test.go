package payment_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gstruct"

	apperrors "github.com/frahmantamala/pix-deposit/internal"
	"github.com/frahmantamala/pix-deposit/internal/core/datamodel/payment"
	paymentgatewaytypes "github.com/frahmantamala/pix-deposit/internal/core/datamodel/paymentgateway"
	"github.com/frahmantamala/pix-deposit/internal/core/events"
	paymentpkg "github.com/frahmantamala/pix-deposit/internal/payment"
	"github.com/frahmantamala/pix-deposit/internal/paymentgateway"
	"github.com/frahmantamala/pix-deposit/internal/poller"
	"github.com/frahmantamala/pix-deposit/internal/receipt"
	"github.com/frahmantamala/pix-deposit/internal/session"
)

const receiptSecret = "0123456789abcdef0123456789abcdef"

func mariaInfo() session.PaymentInfo {
	return session.PaymentInfo{
		ID:      "abc123",
		PixCode: "000201",
		QrCode:  "data:image/png;base64,AAA",
		Amount:  "50.00",
		Name:    "Maria Silva",
		CPF:     "12345678901",
	}
}

type failingStore struct{ session.Store }

func (failingStore) Load(context.Context, string) (*session.PaymentInfo, error) {
	return nil, errors.New("redis: connection refused")
}

var _ = Describe("Service", func() {
	var (
		ctx     context.Context
		store   *session.MemoryStore
		issuer  *receipt.Issuer
		fetcher *sequenceFetcher
		hub     *paymentpkg.Hub
		service *paymentpkg.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = session.NewMemoryStore(time.Minute)
		issuer = receipt.NewIssuer(receiptSecret, time.Minute)
		fetcher = newSequenceFetcher()
		hub = paymentpkg.NewHub(fetcher, fastPolling, nil, testLogger)
		service = paymentpkg.NewService(store, issuer, fetcher, hub, testLogger)
	})

	AfterEach(func() {
		hub.Close()
	})

	Describe("Details", func() {
		It("returns the payment info stored for the session", func() {
			// Given
			Expect(store.Save(ctx, "k1", mariaInfo())).To(Succeed())

			// When
			info, err := service.Details(ctx, "k1")

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(info.ID).To(Equal("abc123"))
		})

		It("reports a missing record as not found", func() {
			_, err := service.Details(ctx, "unknown")
			Expect(err).To(MatchError(apperrors.ErrPaymentInfoMissing))

			_, err = service.Details(ctx, "")
			Expect(err).To(MatchError(apperrors.ErrPaymentInfoMissing))
		})

		It("reports a broken store as internal", func() {
			service = paymentpkg.NewService(failingStore{}, issuer, fetcher, hub, testLogger)

			_, err := service.Details(ctx, "k1")

			appErr, ok := apperrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(apperrors.ErrorTypeInternal))
		})
	})

	Describe("DetailsFromReceipt", func() {
		It("opens a receipt for the same payment", func() {
			token, _, err := issuer.Issue(mariaInfo())
			Expect(err).NotTo(HaveOccurred())

			info, err := service.DetailsFromReceipt(ctx, "abc123", token)

			Expect(err).NotTo(HaveOccurred())
			Expect(info.Name).To(Equal("Maria Silva"))
		})

		It("rejects a receipt issued for another payment", func() {
			token, _, err := issuer.Issue(mariaInfo())
			Expect(err).NotTo(HaveOccurred())

			_, err = service.DetailsFromReceipt(ctx, "other", token)

			Expect(err).To(MatchError(apperrors.ErrInvalidReceipt))
		})
	})

	Describe("Status", func() {
		It("returns the provider view", func() {
			fetcher.script("abc123", paymentgatewaytypes.PaymentStatusPending)

			resp, err := service.Status(ctx, "abc123")

			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Status).To(Equal(paymentgatewaytypes.PaymentStatusPending))
		})

		It("maps provider failures to an external error", func() {
			fetcher.err = fmt.Errorf("%w: status returned 503", paymentgateway.ErrProviderStatus)

			_, err := service.Status(ctx, "abc123")

			appErr, ok := apperrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(apperrors.ErrCodeStatusCheckFailed))
			Expect(errors.Is(err, paymentgateway.ErrProviderStatus)).To(BeTrue())
		})

		It("requires an id", func() {
			_, err := service.Status(ctx, "")
			appErr, ok := apperrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(apperrors.ErrorTypeValidation))
		})
	})

	Describe("Watch", func() {
		It("forwards snapshots until the payment resolves", func() {
			// Given
			fetcher.script("abc123",
				paymentgatewaytypes.PaymentStatusPending,
				paymentgatewaytypes.PaymentStatusPending,
				paymentgatewaytypes.PaymentStatusApproved)
			var states []poller.State

			// When
			err := service.Watch(ctx, "abc123", func(s poller.Snapshot) {
				states = append(states, s.State)
			})

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(states).To(Equal([]poller.State{poller.StatePending, poller.StatePending, poller.StateApproved}))
			Expect(fetcher.Calls("abc123")).To(Equal(3))
		})

		It("returns when the context ends", func() {
			fetcher.script("abc123", paymentgatewaytypes.PaymentStatusPending)
			watchCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()

			err := service.Watch(watchCtx, "abc123", func(poller.Snapshot) {})

			Expect(err).To(MatchError(context.DeadlineExceeded))
			Eventually(hub.Active).Should(Equal(0))
		})
	})
})

var _ = Describe("SnapshotPublisher", func() {
	var (
		bus       *events.EventBus
		publisher *paymentpkg.SnapshotPublisher
		received  chan events.Event
	)

	BeforeEach(func() {
		bus = events.NewEventBus(testLogger)
		publisher = paymentpkg.NewSnapshotPublisher(bus, testLogger)
		received = make(chan events.Event, 10)
		record := func(_ context.Context, e events.Event) error {
			received <- e
			return nil
		}
		bus.Subscribe(events.EventTypePaymentStatusChanged, record)
		bus.Subscribe(events.EventTypePaymentResolved, record)
		bus.Subscribe(events.EventTypePaymentPollFailing, record)
	})

	It("publishes a status change and the resolution on the terminal snapshot", func() {
		// When
		publisher.Observe(poller.StatePending, poller.Snapshot{
			PaymentID:  "abc123",
			State:      poller.StateApproved,
			Attempt:    3,
			Resolved:   true,
			Payment:    &paymentgatewaytypes.PaymentStatusResponse{ID: "abc123", Status: paymentgatewaytypes.PaymentStatusApproved, Amount: 5000},
			ObservedAt: time.Now(),
		})
		Expect(bus.Drain(context.Background())).To(Succeed())

		// Then
		Expect(received).To(HaveLen(2))
		types := map[string]events.Event{}
		for len(received) > 0 {
			e := <-received
			types[e.EventType()] = e
		}
		Expect(types).To(HaveKey(events.EventTypePaymentStatusChanged))
		resolved, ok := types[events.EventTypePaymentResolved].(*events.PaymentResolvedEvent)
		Expect(ok).To(BeTrue())
		Expect(resolved.Amount).To(Equal(int64(5000)))
		Expect(resolved.Attempts).To(Equal(3))
	})

	It("stays quiet while the status does not change", func() {
		publisher.Observe(poller.StatePending, poller.Snapshot{PaymentID: "abc123", State: poller.StatePending})
		Expect(bus.Drain(context.Background())).To(Succeed())
		Expect(received).To(BeEmpty())
	})

	It("announces a persistent failure once", func() {
		publisher.Observe(poller.StatePending, poller.Snapshot{
			PaymentID:         "abc123",
			State:             poller.StateError,
			ConsecutiveErrors: 5,
			PersistentFailure: true,
			Error:             "timeout",
		})
		Expect(bus.Drain(context.Background())).To(Succeed())

		Expect(received).To(HaveLen(1))
		failing, ok := (<-received).(*events.PaymentPollFailingEvent)
		Expect(ok).To(BeTrue())
		Expect(failing.ConsecutiveErrors).To(Equal(5))
	})
})

var _ = Describe("LedgerUpdater", func() {
	var (
		ctx     context.Context
		repo    *fakeRepository
		updater *paymentpkg.LedgerUpdater
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = newFakeRepository()
		updater = paymentpkg.NewLedgerUpdater(repo, testLogger)
		Expect(repo.Create(ctx, &payment.Payment{GatewayID: "abc123", Status: payment.StatusPending})).To(Succeed())
	})

	It("stamps the resolution time", func() {
		at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

		err := updater.HandleResolved(ctx, events.NewPaymentResolvedEvent("abc123", "APPROVED", 5000, 3, at))

		Expect(err).NotTo(HaveOccurred())
		row, _ := repo.GetByGatewayID(ctx, "abc123")
		Expect(row.Status).To(Equal(payment.StatusApproved))
		Expect(row.ResolvedAt).To(PointTo(Equal(at)))
	})

	It("leaves terminal status changes to the resolution handler", func() {
		err := updater.HandleStatusChanged(ctx, events.NewPaymentStatusChangedEvent("abc123", "PENDING", "APPROVED"))

		Expect(err).NotTo(HaveOccurred())
		Expect(repo.Updates()).To(BeEmpty())
	})

	It("ignores payments the ledger does not know", func() {
		err := updater.HandleStatusChanged(ctx, events.NewPaymentStatusChangedEvent("foreign", "UNINITIALIZED", "PENDING"))
		Expect(err).NotTo(HaveOccurred())
	})

	It("surfaces storage failures", func() {
		repo.err = errors.New("database is locked")
		err := updater.HandleStatusChanged(ctx, events.NewPaymentStatusChangedEvent("abc123", "UNINITIALIZED", "PENDING"))
		Expect(err).To(MatchError(ContainSubstring("database is locked")))
	})

	It("updates the ledger through the bus", func() {
		bus := events.NewEventBus(testLogger)
		updater.Register(bus)

		Expect(bus.PublishSync(ctx, events.NewPaymentStatusChangedEvent("abc123", "UNINITIALIZED", "PENDING"))).To(Succeed())

		Expect(repo.Updates()).To(Equal([]string{"abc123:PENDING"}))
	})
})
