// Package callback drives the one-shot OAuth callback flow: it receives the
// redirect carrying the authorization code, hands the code to the session
// store for exchange, and owns the retry/backoff policy and terminal-failure
// behavior. The flow is an explicit state machine with at most one pending
// retry timer, so cancellation and testing stay tractable.
package callback

import (
	"context"
	"sync"
	"time"

	"github.com/sanaa360/creator-cli/internal/backend"
	"github.com/sanaa360/creator-cli/internal/session"
	log "github.com/sirupsen/logrus"
)

// State enumerates the callback flow states.
type State int

const (
	// StateInit is the initial state before the redirect is processed.
	StateInit State = iota
	// StateExchanging means a code exchange attempt is in flight.
	StateExchanging
	// StateRetryWait means an attempt failed retryably and the backoff timer
	// is pending.
	StateRetryWait
	// StateSucceeded is terminal: the session is established.
	StateSucceeded
	// StateFailed is terminal: no automatic retry will happen. Manual retry
	// or cancel are the only ways out.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateExchanging:
		return "exchanging"
	case StateRetryWait:
		return "retry-wait"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Exchanger is the slice of the session store the controller depends on.
type Exchanger interface {
	ExchangeCode(ctx context.Context, code, state string) bool
	State() session.State
}

// Snapshot is the observable status of the flow, published on every
// transition for UI display.
type Snapshot struct {
	State             State
	AttemptCount      int
	StatusLine        string
	ServerUnreachable bool
	ErrKind           backend.Kind
	NextRetryIn       time.Duration
}

// Options configures a Controller.
type Options struct {
	// Policy is the retry backoff tuning; zero value uses DefaultPolicy.
	Policy Policy
	// MaxAttempts bounds automatic retries; <= 0 uses 5. Manual retry resets
	// the count.
	MaxAttempts int
	// ExpectedState is the anti-CSRF value generated at redirect-initiation
	// time. Empty disables the comparison.
	ExpectedState string
	// StrictState promotes a state mismatch from a logged warning to a
	// terminal failure.
	StrictState bool
	// OnUpdate, when set, receives a snapshot after every transition.
	OnUpdate func(Snapshot)
}

// Controller runs the callback flow exactly once per redirect arrival.
// Retries are strictly sequential: a new exchange attempt only starts from
// the backoff timer or a manual retry, never while one is in flight.
type Controller struct {
	store Exchanger
	opts  Options

	mu                sync.Mutex
	state             State
	attemptCount      int
	retryDelay        time.Duration
	timer             *time.Timer
	statusLine        string
	serverUnreachable bool
	errKind           backend.Kind
	nextRetryIn       time.Duration
	canceled          bool

	// done is closed when the current run reaches a terminal state and is
	// replaced with a fresh channel by Retry, so Wait can observe every run.
	done       chan struct{}
	doneClosed bool

	// pending holds snapshots queued under mu and delivered to OnUpdate
	// after the mutex is released, so a callback may call back into the
	// controller without deadlocking.
	pending    []Snapshot
	publishing bool

	ctx context.Context
}

// Outcome is the final result of a callback flow.
type Outcome struct {
	Succeeded bool
	Canceled  bool
	Attempts  int
	ErrKind   backend.Kind
	Message   string
}

// NewController constructs a controller bound to the session store slice.
func NewController(store Exchanger, opts Options) *Controller {
	if opts.Policy.Base <= 0 {
		opts.Policy = DefaultPolicy
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	return &Controller{
		store: store,
		opts:  opts,
		state: StateInit,
		done:  make(chan struct{}),
	}
}

// Begin processes the redirect parameters and starts the flow. It returns
// immediately; the caller observes progress through OnUpdate and Wait.
// A missing code is terminal at once and never touches the backend.
func (c *Controller) Begin(ctx context.Context, code, state string) {
	c.mu.Lock()
	if c.state != StateInit {
		c.mu.Unlock()
		return
	}
	c.ctx = ctx
	c.retryDelay = c.opts.Policy.Base

	if code == "" {
		c.failLocked(backend.KindMissingCode, "authorization code missing from the redirect")
		c.mu.Unlock()
		c.flushUpdates()
		return
	}

	if c.opts.ExpectedState != "" && state != c.opts.ExpectedState {
		log.Warnf("oauth state mismatch: expected %q, got %q", c.opts.ExpectedState, state)
		if c.opts.StrictState {
			c.failLocked(backend.KindStateMismatch, "login could not be verified, please try again")
			c.mu.Unlock()
			c.flushUpdates()
			return
		}
	}

	c.toExchangingLocked()
	c.mu.Unlock()
	c.flushUpdates()

	go c.attempt(code, state)
}

// Retry manually restarts the flow after a terminal failure, resetting the
// attempt count and delay per the documented retry contract. A canceled
// flow stays canceled.
func (c *Controller) Retry(code, state string) {
	c.mu.Lock()
	if c.state != StateFailed || c.canceled {
		c.mu.Unlock()
		return
	}
	c.attemptCount = 0
	c.retryDelay = c.opts.Policy.Base
	c.serverUnreachable = false
	c.errKind = ""
	c.done = make(chan struct{})
	c.doneClosed = false
	if code == "" {
		c.failLocked(backend.KindMissingCode, "authorization code missing from the redirect")
		c.mu.Unlock()
		c.flushUpdates()
		return
	}
	c.toExchangingLocked()
	c.mu.Unlock()
	c.flushUpdates()

	go c.attempt(code, state)
}

// Cancel abandons the flow: any pending retry timer is stopped and no
// further exchange attempt is started. Safe from any state.
func (c *Controller) Cancel() {
	c.mu.Lock()
	c.canceled = true
	c.stopTimerLocked()
	if c.state != StateSucceeded && c.state != StateFailed {
		c.state = StateFailed
		c.statusLine = "login canceled"
		c.publishLocked()
	}
	c.closeDoneLocked()
	c.mu.Unlock()
	c.flushUpdates()
}

// Wait blocks until the current run reaches a terminal state or ctx is
// done. A run restarted by Retry is observed through its own done channel,
// so Wait after Retry reports the new run's outcome.
func (c *Controller) Wait(ctx context.Context) Outcome {
	for {
		c.mu.Lock()
		if c.state == StateSucceeded || c.state == StateFailed {
			outcome := c.outcomeLocked()
			c.mu.Unlock()
			return outcome
		}
		done := c.done
		c.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			c.Cancel()
		}
	}
}

func (c *Controller) outcomeLocked() Outcome {
	return Outcome{
		Succeeded: c.state == StateSucceeded,
		Canceled:  c.canceled,
		Attempts:  c.attemptCount,
		ErrKind:   c.errKind,
		Message:   c.statusLine,
	}
}

// Snapshot returns the current observable status.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// attempt runs one exchange against the store and routes the result through
// the state machine. It never runs concurrently with itself: the only ways
// in are Begin, a fired timer, and a manual Retry, all of which require the
// previous attempt to have completed.
func (c *Controller) attempt(code, state string) {
	ok := c.store.ExchangeCode(c.ctx, code, state)

	c.mu.Lock()
	if c.canceled {
		c.mu.Unlock()
		return
	}

	if ok {
		c.state = StateSucceeded
		c.statusLine = "authentication successful"
		c.serverUnreachable = false
		c.errKind = ""
		c.publishLocked()
		c.closeDoneLocked()
		c.mu.Unlock()
		c.flushUpdates()
		return
	}

	c.attemptCount++
	details := c.store.State().ErrDetails
	if details == nil {
		details = &backend.Error{Kind: backend.KindServer, Message: "authentication failed"}
	}
	c.errKind = details.Kind
	c.serverUnreachable = details.NetworkClass()

	if !details.Retryable() || c.attemptCount >= c.opts.MaxAttempts {
		c.failLocked(details.Kind, terminalMessage(details, c.attemptCount, c.opts.MaxAttempts))
		c.mu.Unlock()
		c.flushUpdates()
		return
	}

	wait, next := c.opts.Policy.Next(c.retryDelay, details.NetworkClass())
	c.retryDelay = next
	c.nextRetryIn = wait
	c.state = StateRetryWait
	if details.NetworkClass() {
		c.statusLine = "server unreachable, retrying shortly"
	} else {
		c.statusLine = "authentication failed, retrying shortly"
	}
	log.WithFields(log.Fields{
		"kind":    string(details.Kind),
		"attempt": c.attemptCount,
		"delay":   wait,
	}).Warn("exchange attempt failed, scheduling retry")
	c.publishLocked()

	c.timer = time.AfterFunc(wait, func() {
		c.mu.Lock()
		if c.canceled || c.state != StateRetryWait {
			c.mu.Unlock()
			return
		}
		c.toExchangingLocked()
		c.mu.Unlock()
		c.flushUpdates()
		c.attempt(code, state)
	})
	c.mu.Unlock()
	c.flushUpdates()
}

// failLocked enters the terminal failed state. Callers hold the mutex.
func (c *Controller) failLocked(kind backend.Kind, msg string) {
	c.stopTimerLocked()
	c.state = StateFailed
	c.errKind = kind
	c.statusLine = msg
	c.publishLocked()
	c.closeDoneLocked()
}

func (c *Controller) toExchangingLocked() {
	c.state = StateExchanging
	c.nextRetryIn = 0
	c.statusLine = "processing TikTok authentication"
	c.publishLocked()
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) closeDoneLocked() {
	if !c.doneClosed {
		close(c.done)
		c.doneClosed = true
	}
}

// publishLocked queues a snapshot for OnUpdate. Delivery happens in
// flushUpdates after the caller releases the mutex.
func (c *Controller) publishLocked() {
	if c.opts.OnUpdate == nil {
		return
	}
	c.pending = append(c.pending, c.snapshotLocked())
}

// flushUpdates drains queued snapshots to OnUpdate without holding the
// mutex. A single goroutine drains at a time; updates queued by a
// re-entrant callback are delivered by the active drainer, in order.
func (c *Controller) flushUpdates() {
	if c.opts.OnUpdate == nil {
		return
	}
	c.mu.Lock()
	if c.publishing {
		c.mu.Unlock()
		return
	}
	c.publishing = true
	for len(c.pending) > 0 {
		snap := c.pending[0]
		c.pending = c.pending[1:]
		c.mu.Unlock()
		c.opts.OnUpdate(snap)
		c.mu.Lock()
	}
	c.publishing = false
	c.mu.Unlock()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:             c.state,
		AttemptCount:      c.attemptCount,
		StatusLine:        c.statusLine,
		ServerUnreachable: c.serverUnreachable,
		ErrKind:           c.errKind,
		NextRetryIn:       c.nextRetryIn,
	}
}

// terminalMessage picks the user-facing text for a terminal failure. An
// insufficient-scope failure gets a distinct, actionable message: the fix is
// re-consenting, not waiting or retrying.
func terminalMessage(details *backend.Error, attempts, maxAttempts int) string {
	switch details.Kind {
	case backend.KindInsufficientScope:
		return "TikTok did not grant the permissions SANAA360 needs; reconnect and approve all requested permissions"
	case backend.KindInvalidCode:
		return "this login link has expired; restart the login from the beginning"
	default:
		if attempts >= maxAttempts {
			return "authentication failed after repeated attempts; check your connection and try again"
		}
		return details.Message
	}
}
