package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"deposit-bridge/pkg/amount"
	"deposit-bridge/pkg/classify"
	"deposit-bridge/pkg/client"
	"deposit-bridge/pkg/deposit"
	"deposit-bridge/pkg/types"
)

const DefaultDebounce = 500 * time.Millisecond

// ExecutorResolver returns the executor for a chain family. *deposit.Registry satisfies it.
type ExecutorResolver interface {
	For(family types.ChainFamily) (deposit.ChainExecutor, error)
}

// Options configures a Controller
type Options struct {
	Debounce    time.Duration
	SlippageBps int
	Notifier    client.DepositNotifier // Told about deposits to provider deposit addresses
	OnUpdate    func(Session)          // Called after every state change, outside the lock
	Logger      zerolog.Logger
}

// Controller owns one session and the work around it: the debounced,
// cancellable quote fetch and the execution hand-off.
type Controller struct {
	mu      sync.Mutex
	session Session
	changed chan struct{} // Closed and replaced on every state change

	quotes    client.QuoteProvider
	executors ExecutorResolver
	accounts  map[types.ChainFamily]string
	opts      Options
	logger    zerolog.Logger

	ctx         context.Context
	stop        context.CancelFunc
	timer       *time.Timer
	cancelQuote context.CancelFunc
}

// NewController creates a controller depositing into dest. accounts maps each
// chain family to the user's source address on it.
func NewController(dest types.Destination, quotes client.QuoteProvider, executors ExecutorResolver, accounts map[types.ChainFamily]string, opts Options) *Controller {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	ctx, stop := context.WithCancel(context.Background())

	return &Controller{
		session:   New(dest),
		changed:   make(chan struct{}),
		quotes:    quotes,
		executors: executors,
		accounts:  accounts,
		opts:      opts,
		logger:    opts.Logger.With().Str("component", "session").Logger(),
		ctx:       ctx,
		stop:      stop,
	}
}

// Session returns the current state
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// SelectToken picks the holding and schedules a quote if one is needed
func (c *Controller) SelectToken(token types.Token) Session {
	return c.input(SelectToken{Token: token})
}

// SetAmount sets the amount and schedules a quote if one is needed
func (c *Controller) SetAmount(input string) Session {
	return c.input(ChangeAmount{Amount: input})
}

func (c *Controller) input(ev Event) Session {
	c.mu.Lock()
	before := c.session.Generation
	c.setLocked(Reduce(c.session, ev))
	if c.session.Generation != before {
		c.scheduleQuoteLocked(c.opts.Debounce)
	}
	s := c.session
	c.mu.Unlock()

	c.notify(s)
	return s
}

// RefreshQuote requests a quote again without waiting for the debounce
func (c *Controller) RefreshQuote() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.InFlight {
		return
	}
	c.scheduleQuoteLocked(0)
}

// scheduleQuoteLocked cancels any pending or running quote fetch and, when the
// session needs one, starts a timer for the current generation
func (c *Controller) scheduleQuoteLocked(delay time.Duration) {
	c.stopQuoteLocked()

	s := c.session
	if !s.NeedsQuote() || !s.AmountValid() {
		return
	}

	generation := s.Generation
	c.timer = time.AfterFunc(delay, func() {
		c.fetchQuote(generation)
	})
}

func (c *Controller) stopQuoteLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancelQuote != nil {
		c.cancelQuote()
		c.cancelQuote = nil
	}
}

func (c *Controller) fetchQuote(generation uint64) {
	c.mu.Lock()
	s := c.session
	if s.Generation != generation || c.ctx.Err() != nil || !s.NeedsQuote() {
		c.mu.Unlock()
		return
	}

	req, err := client.BuildRequest(*s.Token, s.Amount, s.Destination, c.accounts[s.Token.Chain.Family], c.opts.SlippageBps)
	if err != nil {
		c.setLocked(Reduce(s, QuoteFailed{Generation: generation, Err: err}))
		s = c.session
		c.mu.Unlock()
		c.notify(s)
		return
	}

	ctx, cancel := context.WithCancel(c.ctx)
	c.cancelQuote = cancel
	c.setLocked(Reduce(s, QuoteRequested{Generation: generation}))
	s = c.session
	c.mu.Unlock()
	c.notify(s)

	c.logger.Debug().
		Uint64("generation", generation).
		Str("from_amount", req.FromAmount).
		Msg("Requesting quote")

	quote, err := c.quotes.GetQuote(ctx, req)
	cancel()
	if errors.Is(err, context.Canceled) {
		return
	}
	if err != nil {
		c.logger.Warn().Err(err).Uint64("generation", generation).Msg("Quote request failed")
		c.apply(QuoteFailed{Generation: generation, Err: err})
		return
	}
	c.apply(QuoteReceived{Generation: generation, Quote: quote})
}

// Execute runs the deposit. It fails fast without touching the session when
// the session is not executable, and otherwise blocks until a terminal step.
func (c *Controller) Execute(ctx context.Context) (Session, error) {
	c.mu.Lock()
	s := c.session
	if err := s.CanExecute(); err != nil {
		c.mu.Unlock()
		return s, err
	}

	family := s.Token.Chain.Family
	executor, err := c.executors.For(family)
	if err != nil {
		c.mu.Unlock()
		return s, err
	}
	from := c.accounts[family]
	if from == "" {
		c.mu.Unlock()
		return s, fmt.Errorf("no source account for %s", family)
	}
	units, err := amount.ToBaseUnits(s.Amount, s.Token.Decimals)
	if err != nil {
		c.mu.Unlock()
		return s, fmt.Errorf("%w: %w", ErrInvalidAmount, err)
	}

	c.stopQuoteLocked()
	c.setLocked(Reduce(s, ExecutionStarted{}))
	started := c.session
	c.mu.Unlock()
	c.notify(started)

	req := deposit.Request{
		Token:       *s.Token,
		Amount:      units,
		Quote:       s.Quote,
		From:        from,
		Destination: s.Destination,
	}
	if s.Direct() {
		req.Quote = nil
	}

	c.logger.Info().
		Str("session", s.ID).
		Str("chain", s.Token.Chain.Name).
		Str("symbol", s.Token.Symbol).
		Str("amount", s.Amount).
		Bool("direct", s.Direct()).
		Msg("Executing deposit")

	res, err := executor.Execute(ctx, req, func(message string) {
		c.apply(StatusChanged{Message: message})
	})
	if err != nil {
		kind := classify.Classify(err)
		c.logger.Error().
			Err(err).
			Str("session", s.ID).
			Str("kind", string(kind)).
			Str("hash", res.Hash).
			Str("approval_hash", res.ApprovalHash).
			Msg("Deposit failed")
		return c.apply(ExecutionFailed{Hash: res.Hash, Err: err, Kind: kind, Attempts: res.Attempts}), err
	}

	final := c.apply(ExecutionSucceeded{Hash: res.Hash, Confirmed: res.Confirmed, Attempts: res.Attempts})
	c.logger.Info().
		Str("session", s.ID).
		Str("hash", res.Hash).
		Bool("confirmed", res.Confirmed).
		Msg("Deposit submitted")

	if c.opts.Notifier != nil && req.Quote != nil && req.Quote.DepositAddress != "" {
		if err := c.opts.Notifier.NotifyDeposit(ctx, req.Quote, res.Hash); err != nil {
			c.logger.Warn().Err(err).Str("hash", res.Hash).Msg("Failed to notify provider of deposit")
		}
	}

	return final, nil
}

// Retry leaves the error step. When the failure was retryable and the same
// amount and quote are still valid the deposit is submitted again; otherwise
// the session waits for new input.
func (c *Controller) Retry(ctx context.Context) (Session, error) {
	c.mu.Lock()
	s := c.session
	if s.Step != StepError {
		c.mu.Unlock()
		return s, fmt.Errorf("nothing to retry in step %s", s.Step)
	}
	retryable := s.ErrorKind.Retryable()

	c.setLocked(Reduce(s, Retry{}))
	s = c.session
	if s.NeedsQuote() && s.Quote == nil {
		c.scheduleQuoteLocked(0)
	}
	c.mu.Unlock()
	c.notify(s)

	if !retryable || s.Step != StepConfirm {
		return s, nil
	}
	return c.Execute(ctx)
}

// Reset starts a new session. It is refused while a transaction is in flight.
func (c *Controller) Reset() bool {
	c.mu.Lock()
	if c.session.InFlight {
		c.mu.Unlock()
		return false
	}
	c.stopQuoteLocked()
	c.setLocked(Reduce(c.session, Reset{ID: uuid.NewString()}))
	s := c.session
	c.mu.Unlock()

	c.notify(s)
	return true
}

// Close stops background quote work. Like Reset, it is refused while a
// transaction is in flight so a signed deposit is never abandoned.
func (c *Controller) Close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.InFlight {
		return false
	}
	c.stopQuoteLocked()
	c.stop()
	return true
}

// Await blocks until cond holds for the session or ctx ends
func (c *Controller) Await(ctx context.Context, cond func(Session) bool) (Session, error) {
	for {
		c.mu.Lock()
		s, changed := c.session, c.changed
		c.mu.Unlock()

		if cond(s) {
			return s, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return s, ctx.Err()
		}
	}
}

func (c *Controller) apply(ev Event) Session {
	c.mu.Lock()
	c.setLocked(Reduce(c.session, ev))
	s := c.session
	c.mu.Unlock()

	c.notify(s)
	return s
}

func (c *Controller) setLocked(s Session) {
	c.session = s
	close(c.changed)
	c.changed = make(chan struct{})
}

func (c *Controller) notify(s Session) {
	if c.opts.OnUpdate != nil {
		c.opts.OnUpdate(s)
	}
}
