package events_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/pix-deposit/internal/core/events"
)

var _ = Describe("EventBus", func() {
	var bus *events.EventBus

	BeforeEach(func() {
		bus = events.NewEventBus(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})))
	})

	It("should deliver asynchronously and drain", func() {
		// Given
		var received atomic.Int32
		bus.Subscribe(events.EventTypePaymentResolved, func(ctx context.Context, event events.Event) error {
			resolved, ok := event.(*events.PaymentResolvedEvent)
			if ok && resolved.PaymentID == "abc123" {
				received.Add(1)
			}
			return nil
		})

		// When
		ctx, cancel := context.WithCancel(context.Background())
		Expect(bus.Publish(ctx, events.NewPaymentResolvedEvent("abc123", "APPROVED", 5000, 3, time.Now()))).To(Succeed())
		cancel()

		// Then
		drainCtx, drainCancel := context.WithTimeout(context.Background(), time.Second)
		defer drainCancel()
		Expect(bus.Drain(drainCtx)).To(Succeed())
		Expect(received.Load()).To(Equal(int32(1)))
	})

	It("should stop at the first failing synchronous handler", func() {
		// Given
		calls := 0
		bus.Subscribe(events.EventTypePaymentSubmitted, func(context.Context, events.Event) error {
			calls++
			return errors.New("nope")
		})
		bus.Subscribe(events.EventTypePaymentSubmitted, func(context.Context, events.Event) error {
			calls++
			return nil
		})

		// When
		err := bus.PublishSync(context.Background(), events.NewPaymentSubmittedEvent("abc123", "Maria", "12345678901", 5000))

		// Then
		Expect(err).To(HaveOccurred())
		Expect(calls).To(Equal(1))
		Expect(bus.HandlerCount(events.EventTypePaymentSubmitted)).To(Equal(2))
	})

	It("should ignore events nobody listens to", func() {
		Expect(bus.Publish(context.Background(), events.NewPaymentPollFailingEvent("abc123", 5, "timeout"))).To(Succeed())
	})
})
