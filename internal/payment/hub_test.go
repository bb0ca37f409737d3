package payment_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	paymentgatewaytypes "github.com/frahmantamala/pix-deposit/internal/core/datamodel/paymentgateway"
	paymentpkg "github.com/frahmantamala/pix-deposit/internal/payment"
	"github.com/frahmantamala/pix-deposit/internal/poller"
)

func drain(ch <-chan poller.Snapshot) []poller.Snapshot {
	var out []poller.Snapshot
	Eventually(func() bool {
		for {
			select {
			case s, ok := <-ch:
				if !ok {
					return true
				}
				out = append(out, s)
			default:
				return false
			}
		}
	}, 2*time.Second, 5*time.Millisecond).Should(BeTrue())
	return out
}

var _ = Describe("Hub", func() {
	var (
		fetcher  *sequenceFetcher
		observer *observerLog
		hub      *paymentpkg.Hub
	)

	BeforeEach(func() {
		fetcher = newSequenceFetcher()
		observer = &observerLog{}
		hub = paymentpkg.NewHub(fetcher, fastPolling, observer.observe, testLogger)
	})

	AfterEach(func() {
		hub.Close()
	})

	It("shares one poller between subscribers of the same payment", func() {
		// Given
		fetcher.script("abc123",
			paymentgatewaytypes.PaymentStatusPending,
			paymentgatewaytypes.PaymentStatusPending,
			paymentgatewaytypes.PaymentStatusApproved)

		// When
		first, unsubscribeFirst, err := hub.Subscribe("abc123")
		Expect(err).NotTo(HaveOccurred())
		defer unsubscribeFirst()
		second, unsubscribeSecond, err := hub.Subscribe("abc123")
		Expect(err).NotTo(HaveOccurred())
		defer unsubscribeSecond()

		// Then
		firstSeen := drain(first)
		secondSeen := drain(second)
		Expect(firstSeen[len(firstSeen)-1].State).To(Equal(poller.StateApproved))
		Expect(secondSeen[len(secondSeen)-1].State).To(Equal(poller.StateApproved))
		Expect(fetcher.Calls("abc123")).To(Equal(3))
		Eventually(observer.Len).Should(Equal(3))
		Expect(observer.Resolved()).To(Equal(1))
		Expect(hub.Active()).To(Equal(0))
	})

	It("replays the final snapshot to late subscribers without fetching again", func() {
		// Given
		fetcher.script("abc123", paymentgatewaytypes.PaymentStatusApproved)
		ch, unsubscribe, err := hub.Subscribe("abc123")
		Expect(err).NotTo(HaveOccurred())
		drain(ch)
		unsubscribe()

		// When
		late, unsubscribeLate, err := hub.Subscribe("abc123")
		Expect(err).NotTo(HaveOccurred())
		defer unsubscribeLate()

		// Then
		seen := drain(late)
		Expect(seen).To(HaveLen(1))
		Expect(seen[0].State).To(Equal(poller.StateApproved))
		Expect(fetcher.Calls("abc123")).To(Equal(1))
		Eventually(observer.Resolved).Should(Equal(1))
	})

	It("stops polling when the last subscriber leaves", func() {
		// Given
		fetcher.script("abc123", paymentgatewaytypes.PaymentStatusPending)
		ch, unsubscribe, err := hub.Subscribe("abc123")
		Expect(err).NotTo(HaveOccurred())
		Eventually(ch).Should(Receive())

		// When
		unsubscribe()
		unsubscribe()

		// Then
		Expect(hub.Active()).To(Equal(0))
		drain(ch)
		calls := fetcher.Calls("abc123")
		Consistently(func() int { return fetcher.Calls("abc123") }, 60*time.Millisecond, 10*time.Millisecond).
			Should(BeNumerically("<=", calls+1))
	})

	It("holds a new poller back until the abandoned fetch returns", func() {
		// Given
		slow := newSlowFetcher()
		slowHub := paymentpkg.NewHub(slow, fastPolling, nil, testLogger)
		defer slowHub.Close()

		_, leave, err := slowHub.Subscribe("abc123")
		Expect(err).NotTo(HaveOccurred())
		Eventually(slow.Calls).Should(Equal(1))
		leave()

		// When
		ch, unsubscribe, err := slowHub.Subscribe("abc123")
		Expect(err).NotTo(HaveOccurred())
		defer unsubscribe()

		// Then
		Consistently(slow.Calls, 50*time.Millisecond, 10*time.Millisecond).Should(Equal(1))
		close(slow.release)
		Eventually(ch).Should(Receive())
		Expect(slow.MaxInFlight()).To(Equal(1))
	})

	It("hands the observer the previously observed status", func() {
		// Given
		fetcher.script("abc123",
			paymentgatewaytypes.PaymentStatusPending,
			paymentgatewaytypes.PaymentStatusRejected)

		// When
		ch, unsubscribe, err := hub.Subscribe("abc123")
		Expect(err).NotTo(HaveOccurred())
		defer unsubscribe()
		drain(ch)

		// Then
		Eventually(observer.Len).Should(Equal(2))
		observer.mu.Lock()
		defer observer.mu.Unlock()
		Expect(observer.seen[0].previous).To(Equal(poller.StateUninitialized))
		Expect(observer.seen[1].previous).To(Equal(poller.StatePending))
		Expect(observer.seen[1].snapshot.Resolved).To(BeTrue())
	})

	It("refuses an empty payment id", func() {
		_, _, err := hub.Subscribe("")
		Expect(err).To(MatchError(poller.ErrMissingPaymentID))
	})

	It("closes subscriptions on Close", func() {
		fetcher.script("abc123", paymentgatewaytypes.PaymentStatusPending)
		ch, unsubscribe, err := hub.Subscribe("abc123")
		Expect(err).NotTo(HaveOccurred())

		hub.Close()
		unsubscribe()

		drain(ch)
		Expect(hub.Active()).To(Equal(0))
	})
})
