// Package poller watches a single payment until the provider reports a
// terminal status.
//
// A Poller owns one goroutine and one timer. The next fetch is armed only
// after the previous one returned, so there is never more than one request
// in flight per payment. Stop invalidates the running loop: a fetch that is
// still in flight may complete, but its result is dropped.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paymentgatewaytypes "github.com/frahmantamala/pix-deposit/internal/core/datamodel/paymentgateway"
)

type State string

const (
	StateUninitialized State = "UNINITIALIZED"
	StateFetching      State = "FETCHING"
	StatePending       State = "PENDING"
	StateApproved      State = "APPROVED"
	StateRejected      State = "REJECTED"
	StateRefunded      State = "REFUNDED"
	StateChargeback    State = "CHARGEBACK"
	StateError         State = "ERROR"
)

func (s State) IsTerminal() bool {
	switch s {
	case StateApproved, StateRejected, StateRefunded, StateChargeback:
		return true
	}
	return false
}

// Label is the pt-BR text shown for the state.
func (s State) Label() string {
	return paymentgatewaytypes.PaymentStatus(s).Label()
}

const (
	DefaultInterval             = 5 * time.Second
	DefaultMaxConsecutiveErrors = 5
)

var (
	ErrMissingPaymentID = errors.New("payment id is required to start polling")
	ErrAlreadyRunning   = errors.New("poller is already watching another payment")
	ErrUnknownStatus    = errors.New("status endpoint returned an unknown status")
)

// Fetcher is the status endpoint.
type Fetcher interface {
	GetPaymentStatus(ctx context.Context, paymentID string) (*paymentgatewaytypes.PaymentStatusResponse, error)
}

// Snapshot is emitted after every completed fetch. Resolved is set on the one
// snapshot that carries the terminal transition. PersistentFailure is set once
// per failure streak, when the streak reaches the configured limit.
type Snapshot struct {
	PaymentID         string                                     `json:"payment_id"`
	State             State                                      `json:"state"`
	Label             string                                     `json:"label"`
	Payment           *paymentgatewaytypes.PaymentStatusResponse `json:"payment,omitempty"`
	Err               error                                      `json:"-"`
	Error             string                                     `json:"error,omitempty"`
	Attempt           int                                        `json:"attempt"`
	ConsecutiveErrors int                                        `json:"consecutive_errors"`
	Resolved          bool                                       `json:"resolved"`
	PersistentFailure bool                                       `json:"persistent_failure"`
	ObservedAt        time.Time                                  `json:"observed_at"`
}

type Listener func(Snapshot)

type Config struct {
	Interval             time.Duration
	MaxConsecutiveErrors int
	// FetchTimeout bounds a single status request; zero leaves it to the fetcher.
	FetchTimeout time.Duration
}

type Poller struct {
	fetcher  Fetcher
	config   Config
	listener Listener
	logger   *slog.Logger

	mu         sync.Mutex
	state      State
	observed   State
	paymentID  string
	running    bool
	resolved   bool
	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}
}

func New(fetcher Fetcher, config Config, listener Listener, logger *slog.Logger) *Poller {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.MaxConsecutiveErrors <= 0 {
		config.MaxConsecutiveErrors = DefaultMaxConsecutiveErrors
	}
	if listener == nil {
		listener = func(Snapshot) {}
	}

	done := make(chan struct{})
	close(done)

	return &Poller{
		fetcher:  fetcher,
		config:   config,
		listener: listener,
		logger:   logger,
		state:    StateUninitialized,
		observed: StateUninitialized,
		done:     done,
	}
}

// Start begins polling paymentID. Starting the payment that is already being
// watched, or one that already resolved, is a no-op.
func (p *Poller) Start(ctx context.Context, paymentID string) error {
	return p.StartAfter(ctx, paymentID, nil)
}

// StartAfter is Start with the first fetch held back until after is closed.
// A replacement poller uses it to queue behind one that was stopped mid-fetch.
func (p *Poller) StartAfter(ctx context.Context, paymentID string, after <-chan struct{}) error {
	if paymentID == "" {
		return ErrMissingPaymentID
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		if p.paymentID == paymentID {
			return nil
		}
		return fmt.Errorf("%w: watching %s", ErrAlreadyRunning, p.paymentID)
	}
	if p.paymentID == paymentID && p.resolved {
		return nil
	}
	if p.paymentID != paymentID {
		p.resolved = false
		p.state = StateUninitialized
		p.observed = StateUninitialized
	}

	loopCtx, cancel := context.WithCancel(ctx)
	previous := p.done
	p.generation++
	p.paymentID = paymentID
	p.running = true
	p.cancel = cancel
	p.done = make(chan struct{})

	p.logger.Info("payment polling started",
		"payment_id", paymentID,
		"interval", p.config.Interval.String())

	go p.run(loopCtx, cancel, p.generation, paymentID, previous, after, p.done)
	return nil
}

// Stop cancels the pending timer and drops the result of any in-flight fetch. Safe to call repeatedly.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.running = false
	p.generation++
	p.state = p.observed
	p.cancel()

	p.logger.Info("payment polling stopped", "payment_id", p.paymentID)
}

func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) PaymentID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paymentID
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Done is closed when the current loop exits, whether by resolution, Stop or context cancellation.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *Poller) run(ctx context.Context, cancel context.CancelFunc, gen uint64, paymentID string, previous, after <-chan struct{}, done chan struct{}) {
	defer close(done)
	defer cancel()
	defer p.finish(gen)

	// A stopped loop may still be waiting on its last fetch. done stays open
	// until that loop exits so restarts chain behind each other.
	<-previous
	if after != nil {
		<-after
	}
	if ctx.Err() != nil {
		return
	}

	attempt := 0
	consecutiveErrors := 0

	for {
		if !p.beginFetch(gen) {
			return
		}
		attempt++

		resp, err := p.fetch(ctx, paymentID)
		if ctx.Err() != nil {
			return
		}

		snapshot, ok := p.record(gen, paymentID, attempt, &consecutiveErrors, resp, err)
		if !ok {
			p.logger.Debug("discarding status result after stop", "payment_id", paymentID)
			return
		}

		p.listener(snapshot)

		if snapshot.State.IsTerminal() {
			p.logger.Info("payment resolved",
				"payment_id", paymentID,
				"status", snapshot.State,
				"attempts", attempt)
			return
		}

		timer := time.NewTimer(p.config.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (p *Poller) fetch(ctx context.Context, paymentID string) (*paymentgatewaytypes.PaymentStatusResponse, error) {
	if p.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.FetchTimeout)
		defer cancel()
	}
	return p.fetcher.GetPaymentStatus(ctx, paymentID)
}

func (p *Poller) beginFetch(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.generation != gen || !p.running {
		return false
	}
	p.state = StateFetching
	return true
}

func (p *Poller) record(gen uint64, paymentID string, attempt int, consecutiveErrors *int, resp *paymentgatewaytypes.PaymentStatusResponse, err error) (Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.generation != gen || !p.running {
		return Snapshot{}, false
	}

	if err == nil {
		switch {
		case resp == nil:
			err = fmt.Errorf("%w: empty response", ErrUnknownStatus)
		case !resp.Status.IsValid():
			err = fmt.Errorf("%w: %q", ErrUnknownStatus, resp.Status)
		}
	}

	snapshot := Snapshot{
		PaymentID:  paymentID,
		Attempt:    attempt,
		ObservedAt: time.Now(),
	}

	if err != nil {
		*consecutiveErrors++
		snapshot.State = StateError
		snapshot.Err = err
		snapshot.Error = err.Error()
		snapshot.ConsecutiveErrors = *consecutiveErrors
		snapshot.PersistentFailure = *consecutiveErrors == p.config.MaxConsecutiveErrors

		p.logger.Warn("payment status check failed",
			"payment_id", paymentID,
			"attempt", attempt,
			"consecutive_errors", *consecutiveErrors,
			"error", err)
		if snapshot.PersistentFailure {
			p.logger.Error("payment status keeps failing",
				"payment_id", paymentID,
				"consecutive_errors", *consecutiveErrors)
		}
	} else {
		*consecutiveErrors = 0
		snapshot.State = State(resp.Status)
		snapshot.Payment = resp
		p.observed = snapshot.State

		if snapshot.State.IsTerminal() {
			snapshot.Resolved = !p.resolved
			p.resolved = true
			p.running = false
		}
	}

	snapshot.Label = snapshot.State.Label()
	if snapshot.State == StateError {
		snapshot.Label = p.observed.Label()
	}

	p.state = snapshot.State
	return snapshot, true
}

func (p *Poller) finish(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.generation == gen && p.running {
		p.running = false
		p.state = p.observed
	}
}
