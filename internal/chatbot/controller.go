package chatbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"BuyBuddy/internal/api"
	"BuyBuddy/internal/pricing"
	"BuyBuddy/internal/session"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Backend is the part of the backend client the controller talks to
type Backend interface {
	Chat(ctx context.Context, message string, sessionID string) (api.Reply, error)
	ConversationHistory(ctx context.Context, sessionID string, limit int) ([]api.HistoryEntry, error)
	ConversationProducts(ctx context.Context, sessionID string) ([]session.Product, error)
}

// Phase is what the controller is currently waiting on
type Phase int

const (
	Idle Phase = iota
	Sending
	LoadingHistory
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Sending:
		return "sending"
	case LoadingHistory:
		return "loading_history"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// State is a snapshot of the controller. Session is a deep copy; Version
// increases with every change so observers can ignore older snapshots.
type State struct {
	Session session.Session
	Phase   Phase
	Version uint64
}

// DefaultHistoryLimit is how many exchanges a reload asks for
const DefaultHistoryLimit = 100

// Option configures a Controller
type Option func(*Controller)

// WithClock replaces time.Now for message timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithHistoryLimit sets how many exchanges LoadConversation requests
func WithHistoryLimit(limit int) Option {
	return func(c *Controller) {
		if limit > 0 {
			c.historyLimit = limit
		}
	}
}

// WithTracer sets the tracer used for controller spans
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Controller) {
		c.tracer = tracer
	}
}

// WithMeter sets the meter used for controller counters
func WithMeter(meter metric.Meter) Option {
	return func(c *Controller) {
		c.meter = meter
	}
}

// Controller owns the conversation the user is looking at. It serializes
// exchanges, reconciles backend replies into messages and discards results
// that arrive after the conversation was replaced.
type Controller struct {
	backend      Backend
	logger       *slog.Logger
	tracer       trace.Tracer
	meter        metric.Meter
	now          func() time.Time
	historyLimit int

	exchanges metric.Int64Counter
	stale     metric.Int64Counter

	mu         sync.Mutex
	session    session.Session
	phase      Phase
	generation uint64
	seq        uint64
	version    uint64
	observers  []func(State)
}

// NewController creates a controller with an empty conversation
func NewController(backend Backend, logger *slog.Logger, opts ...Option) (*Controller, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	c := &Controller{
		backend:      backend,
		logger:       logger,
		tracer:       otel.Tracer("buybuddy/chatbot"),
		meter:        otel.Meter("buybuddy/chatbot"),
		now:          time.Now,
		historyLimit: DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(c)
	}

	var err error
	c.exchanges, err = c.meter.Int64Counter(
		"buybuddy.exchanges",
		metric.WithDescription("Completed chat exchanges by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create exchanges counter: %w", err)
	}
	c.stale, err = c.meter.Int64Counter(
		"buybuddy.stale_results",
		metric.WithDescription("Backend results dropped because the conversation changed"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stale results counter: %w", err)
	}

	return c, nil
}

// Subscribe registers fn to receive a snapshot after every state change.
// fn runs on the goroutine that made the change, outside the lock.
func (c *Controller) Subscribe(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Snapshot returns a copy of the current state
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() State {
	return State{
		Session: c.session.Clone(),
		Phase:   c.phase,
		Version: c.version,
	}
}

// changedLocked bumps the version and returns what must be published once
// the lock is released.
func (c *Controller) changedLocked() (State, []func(State)) {
	c.version++
	observers := make([]func(State), len(c.observers))
	copy(observers, c.observers)
	return c.snapshotLocked(), observers
}

func publish(state State, observers []func(State)) {
	for _, fn := range observers {
		fn(state)
	}
}

// nextSeqLocked allocates the next message sequence number
func (c *Controller) nextSeqLocked() uint64 {
	c.seq++
	return c.seq
}

// timestampLocked keeps message timestamps non-decreasing even if the clock
// steps back.
func (c *Controller) timestampLocked() time.Time {
	ts := c.now()
	if last, ok := c.session.Last(); ok && ts.Before(last.Timestamp) {
		return last.Timestamp
	}
	return ts
}

// SendMessage appends text as a user message, sends it, and appends the
// assistant reply. On failure the user message stays and nothing else is
// added.
func (c *Controller) SendMessage(ctx context.Context, text string) (session.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return session.Message{}, ErrEmptyMessage
	}

	ctx, span := c.tracer.Start(ctx, "controller.send_message")
	defer span.End()

	c.mu.Lock()
	if c.phase != Idle {
		phase := c.phase
		c.mu.Unlock()
		span.SetStatus(codes.Error, ErrBusy.Error())
		c.logger.Debug("send rejected", "phase", phase.String())
		return session.Message{}, ErrBusy
	}

	seq := c.nextSeqLocked()
	userMsg := session.Message{
		ID:        session.MessageID(seq),
		Seq:       seq,
		Role:      session.RoleUser,
		Content:   text,
		Timestamp: c.timestampLocked(),
	}
	c.session.Messages = append(c.session.Messages, userMsg)
	c.phase = Sending
	generation := c.generation
	sessionID := c.session.ID
	state, observers := c.changedLocked()
	c.mu.Unlock()
	publish(state, observers)

	span.SetAttributes(attribute.String("session_id", sessionID))
	c.logger.Info("sending message", "session_id", sessionID, "message_id", userMsg.ID)

	reply, err := c.backend.Chat(ctx, text, sessionID)
	if err == nil {
		switch r := reply.(type) {
		case nil:
			err = errors.New("backend returned no reply")
		case api.ErrorResult:
			err = &api.ApplicationError{SessionID: r.SessionID, Message: r.Message}
		}
	}

	c.mu.Lock()
	if c.generation != generation {
		c.mu.Unlock()
		c.stale.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", "send")))
		c.logger.Info("dropping stale reply", "session_id", sessionID, "message_id", userMsg.ID)
		span.SetStatus(codes.Error, ErrStale.Error())
		return session.Message{}, ErrStale
	}

	if err != nil {
		c.phase = Idle
		state, observers = c.changedLocked()
		c.mu.Unlock()
		publish(state, observers)

		c.exchanges.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
		c.logger.Error("failed to send message", "session_id", sessionID, "message_id", userMsg.ID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return session.Message{}, &SendError{UserMessageID: userMsg.ID, Err: err}
	}

	if replyID := reply.Session(); replyID != "" {
		switch {
		case c.session.ID == "":
			c.session.ID = replyID
		case c.session.ID != replyID:
			c.logger.Warn("backend answered for another session", "session_id", c.session.ID, "reply_session_id", replyID)
		}
	}

	seq = c.nextSeqLocked()
	assistant := session.Message{
		ID:        session.MessageID(seq),
		Seq:       seq,
		Role:      session.RoleAssistant,
		Timestamp: c.timestampLocked(),
	}
	outcome := "conversational"
	switch r := reply.(type) {
	case api.ProductResult:
		outcome = "products"
		assistant.Content = r.Text
		assistant.ProductMessage = r.ProductMessage
		assistant.Products = append([]session.Product(nil), r.Products...)
		assistant.PriceComparison = pricing.ReconcileComparison(r.Comparison, r.Products)
	case api.ConversationalReply:
		assistant.Content = r.Text
		assistant.ProductMessage = r.ProductMessage
	}
	c.session.Messages = append(c.session.Messages, assistant)
	c.phase = Idle
	state, observers = c.changedLocked()
	sessionID = c.session.ID
	c.mu.Unlock()
	publish(state, observers)

	c.exchanges.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	c.logger.Info("received reply", "session_id", sessionID, "message_id", assistant.ID, "products", len(assistant.Products))

	return assistant.Clone(), nil
}

// LoadConversation replaces the conversation with the stored history of
// sessionID. The history and the session's products are fetched together and
// both must succeed; on failure the current conversation is left as it was.
func (c *Controller) LoadConversation(ctx context.Context, sessionID string) ([]session.Message, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}

	ctx, span := c.tracer.Start(ctx, "controller.load_conversation",
		trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer span.End()

	c.mu.Lock()
	if c.phase != Idle {
		c.mu.Unlock()
		span.SetStatus(codes.Error, ErrBusy.Error())
		return nil, ErrBusy
	}
	c.phase = LoadingHistory
	generation := c.generation
	state, observers := c.changedLocked()
	c.mu.Unlock()
	publish(state, observers)

	c.logger.Info("loading conversation", "session_id", sessionID)

	var (
		entries  []api.HistoryEntry
		products []session.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = c.backend.ConversationHistory(gctx, sessionID, c.historyLimit)
		if err != nil {
			return fmt.Errorf("failed to fetch history: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		products, err = c.backend.ConversationProducts(gctx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to fetch products: %w", err)
		}
		return nil
	})
	err := g.Wait()

	var messages []session.Message
	if err == nil {
		messages = Reconstruct(entries, products)
	}

	c.mu.Lock()
	if c.generation != generation {
		c.mu.Unlock()
		c.stale.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", "load")))
		c.logger.Info("dropping stale history", "session_id", sessionID)
		span.SetStatus(codes.Error, ErrStale.Error())
		return nil, ErrStale
	}

	if err != nil {
		c.phase = Idle
		state, observers = c.changedLocked()
		c.mu.Unlock()
		publish(state, observers)

		c.logger.Error("failed to load conversation", "session_id", sessionID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &LoadError{SessionID: sessionID, Err: err}
	}

	c.session = session.Session{ID: sessionID, Messages: messages}
	c.seq = uint64(len(messages))
	c.phase = Idle
	state, observers = c.changedLocked()
	c.mu.Unlock()
	publish(state, observers)

	c.logger.Info("conversation loaded", "session_id", sessionID, "messages", len(messages), "products", len(products))

	return state.Session.Messages, nil
}

// StartNewConversation clears the conversation. Results of requests still
// in flight are discarded when they arrive.
func (c *Controller) StartNewConversation() {
	c.mu.Lock()
	previous := c.session.ID
	c.generation++
	c.session = session.Session{}
	c.seq = 0
	c.phase = Idle
	state, observers := c.changedLocked()
	c.mu.Unlock()
	publish(state, observers)

	c.logger.Info("started new conversation", "previous_session_id", previous)
}
