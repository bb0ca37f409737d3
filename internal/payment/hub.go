package payment

import (
	"context"
	"log/slog"
	"sync"

	"github.com/frahmantamala/pix-deposit/internal/poller"
)

const (
	subscriberBuffer  = 8
	resolvedCacheSize = 1024
)

// Observer sees every snapshot exactly once, whatever the number of
// subscribers. previous is the last status observed before this snapshot.
type Observer func(previous poller.State, snapshot poller.Snapshot)

type watch struct {
	poller   *poller.Poller
	subs     map[int]chan poller.Snapshot
	observed poller.State
	last     *poller.Snapshot
}

// Hub runs at most one poller per payment id and fans its snapshots out to
// every subscriber. Late subscribers get the latest snapshot replayed. The
// poller stops when its last subscriber leaves.
type Hub struct {
	fetcher  poller.Fetcher
	config   poller.Config
	observer Observer
	logger   *slog.Logger

	mu       sync.Mutex
	watches  map[string]*watch
	nextID   int
	resolved map[string]poller.Snapshot
	order    []string
	stopping map[string]<-chan struct{}
	closed   bool
}

func NewHub(fetcher poller.Fetcher, config poller.Config, observer Observer, logger *slog.Logger) *Hub {
	if observer == nil {
		observer = func(poller.State, poller.Snapshot) {}
	}
	return &Hub{
		fetcher:  fetcher,
		config:   config,
		observer: observer,
		logger:   logger,
		watches:  make(map[string]*watch),
		resolved: make(map[string]poller.Snapshot),
		stopping: make(map[string]<-chan struct{}),
	}
}

// Subscribe returns a channel of snapshots for paymentID. The channel is
// closed once the payment resolves or the hub closes. The returned function
// unsubscribes and may be called more than once.
func (h *Hub) Subscribe(paymentID string) (<-chan poller.Snapshot, func(), error) {
	if paymentID == "" {
		return nil, nil, poller.ErrMissingPaymentID
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan poller.Snapshot, subscriberBuffer)

	if h.closed {
		close(ch)
		return ch, func() {}, nil
	}

	if final, ok := h.resolved[paymentID]; ok {
		ch <- final
		close(ch)
		return ch, func() {}, nil
	}

	w, ok := h.watches[paymentID]
	if !ok {
		w = &watch{
			subs:     make(map[int]chan poller.Snapshot),
			observed: poller.StateUninitialized,
		}
		w.poller = poller.New(h.fetcher, h.config, h.listener(paymentID, w), h.logger)
		if err := w.poller.StartAfter(context.Background(), paymentID, h.stopping[paymentID]); err != nil {
			return nil, nil, err
		}
		h.watches[paymentID] = w
	}

	h.nextID++
	id := h.nextID
	w.subs[id] = ch
	if w.last != nil {
		ch <- *w.last
	}

	h.logger.Debug("payment watcher subscribed",
		"payment_id", paymentID,
		"subscribers", len(w.subs))

	var once sync.Once
	return ch, func() {
		once.Do(func() { h.unsubscribe(paymentID, id) })
	}, nil
}

func (h *Hub) unsubscribe(paymentID string, id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	w, ok := h.watches[paymentID]
	if !ok {
		return
	}
	ch, ok := w.subs[id]
	if !ok {
		return
	}
	delete(w.subs, id)
	close(ch)

	if len(w.subs) == 0 {
		w.poller.Stop()
		delete(h.watches, paymentID)
		h.drain(paymentID, w.poller.Done())
		h.logger.Debug("last watcher left, polling stopped", "payment_id", paymentID)
	}
}

// drain keeps a stopped poller's done channel until its in-flight fetch
// returns, so a replacement for the same payment waits for it.
func (h *Hub) drain(paymentID string, done <-chan struct{}) {
	h.stopping[paymentID] = done
	go func() {
		<-done
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.stopping[paymentID] == done {
			delete(h.stopping, paymentID)
		}
	}()
}

// listener is bound to w so a poller that was replaced cannot deliver into its successor.
func (h *Hub) listener(paymentID string, w *watch) poller.Listener {
	return func(snapshot poller.Snapshot) {
		h.mu.Lock()
		if h.watches[paymentID] != w || h.closed {
			h.mu.Unlock()
			return
		}

		previous := w.observed
		if snapshot.State != poller.StateError {
			w.observed = snapshot.State
		}
		w.last = &snapshot

		for _, ch := range w.subs {
			deliver(ch, snapshot)
		}

		if snapshot.State.IsTerminal() {
			for id, ch := range w.subs {
				close(ch)
				delete(w.subs, id)
			}
			delete(h.watches, paymentID)
			h.remember(paymentID, snapshot)
		}
		h.mu.Unlock()

		h.observer(previous, snapshot)
	}
}

// deliver never blocks the poller: a subscriber that fell behind loses its
// oldest queued snapshot.
func deliver(ch chan poller.Snapshot, snapshot poller.Snapshot) {
	for {
		select {
		case ch <- snapshot:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (h *Hub) remember(paymentID string, snapshot poller.Snapshot) {
	if _, ok := h.resolved[paymentID]; !ok {
		h.order = append(h.order, paymentID)
	}
	h.resolved[paymentID] = snapshot
	if len(h.order) > resolvedCacheSize {
		oldest := h.order[0]
		h.order = h.order[1:]
		delete(h.resolved, oldest)
	}
}

// Active reports how many payments are being polled.
func (h *Hub) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watches)
}

// Close stops every poller and closes every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for paymentID, w := range h.watches {
		w.poller.Stop()
		for id, ch := range w.subs {
			close(ch)
			delete(w.subs, id)
		}
		delete(h.watches, paymentID)
	}
}
