// Package observer drives one download request end to end: it validates the
// URL, resets session state, transmits the request and applies every status
// message from the token channel in arrival order until completion.
package observer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/r3labs/diff/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/siteclone/internal/archive"
	"github.com/JakeFAU/siteclone/internal/clock"
	"github.com/JakeFAU/siteclone/internal/clock/system"
	"github.com/JakeFAU/siteclone/internal/id/token"
	"github.com/JakeFAU/siteclone/internal/id/uuid"
	"github.com/JakeFAU/siteclone/internal/policy/ratelimit"
	"github.com/JakeFAU/siteclone/internal/progress"
	"github.com/JakeFAU/siteclone/internal/render"
	"github.com/JakeFAU/siteclone/internal/request"
	"github.com/JakeFAU/siteclone/internal/session"
)

// InvalidURLWarning is shown when a non-empty URL fails validation.
const InvalidURLWarning = "Please enter a valid URL starting with http:// or https://"

var (
	// ErrChannelClosed is returned when the token channel ends before the
	// session completed.
	ErrChannelClosed = errors.New("observer: channel closed before completion")
	// ErrInvalidToken is returned by Watch for tokens outside the token alphabet.
	ErrInvalidToken = errors.New("observer: invalid token")
)

// IDGenerator mints request correlation IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Config wires an Observer. Only Tokens is required.
type Config struct {
	Tokens      *token.Source
	IDs         IDGenerator
	Limiter     *ratelimit.Limiter
	Classifier  *progress.Classifier
	Renderer    render.Renderer
	Emitter     progress.Emitter
	Clock       clock.Clock
	Logger      *zap.Logger
	LogCapacity int
	// WaitTimeout bounds how long one session is observed; zero waits forever.
	WaitTimeout time.Duration
}

// Result is the outcome of a completed session.
type Result struct {
	Token       string
	RequestID   string
	Filename    string
	ArchivePath string
	ArchiveOK   bool
	State       session.State
}

// Observer is safe for sequential use by one caller; Run and Watch must not
// be called concurrently on the same Observer.
type Observer struct {
	transport  Transport
	tokens     *token.Source
	ids        IDGenerator
	limiter    *ratelimit.Limiter
	classifier *progress.Classifier
	renderer   render.Renderer
	emitter    progress.Emitter
	clock      clock.Clock
	logger     *zap.Logger
	opts       session.Options
	timeout    time.Duration

	mu          sync.Mutex
	shared      Feed
	sharedToken string
}

// New builds an Observer over t.
func New(t Transport, cfg Config) (*Observer, error) {
	if t == nil {
		return nil, errors.New("observer: transport is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("observer: token source is required")
	}
	o := &Observer{
		transport:  t,
		tokens:     cfg.Tokens,
		ids:        cfg.IDs,
		limiter:    cfg.Limiter,
		classifier: cfg.Classifier,
		renderer:   cfg.Renderer,
		emitter:    cfg.Emitter,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
		opts:       session.Options{LogCapacity: cfg.LogCapacity},
		timeout:    cfg.WaitTimeout,
	}
	if o.ids == nil {
		o.ids = uuid.New()
	}
	if o.classifier == nil {
		o.classifier = progress.NewClassifier(progress.DefaultMarkers())
	}
	if o.renderer == nil {
		o.renderer = render.Nop{}
	}
	if o.emitter == nil {
		o.emitter = progress.NopEmitter{}
	}
	if o.clock == nil {
		o.clock = system.NewUTC()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	o.logger = o.logger.Named("observer")
	return o, nil
}

// Run submits website and observes its session until completion.
func (o *Observer) Run(ctx context.Context, website string) (Result, error) {
	v := request.Validate(website)
	if !v.Sendable {
		if v.Warning {
			o.renderer.Warning(InvalidURLWarning)
		}
		return Result{}, request.ErrNotSendable
	}

	tok, err := o.tokens.Next()
	if err != nil {
		return Result{}, fmt.Errorf("obtain token: %w", err)
	}
	payload, err := request.New(tok, website)
	if err != nil {
		return Result{}, err
	}
	requestID, err := o.ids.NewID()
	if err != nil {
		return Result{}, fmt.Errorf("request id: %w", err)
	}

	feed, release := o.feed(tok)
	defer release()

	ctx, cancel := o.bound(ctx)
	defer cancel()

	state := o.start(tok, requestID, payload.Website)

	if o.limiter != nil {
		waited, err := o.limiter.Wait(ctx, payload.Website)
		if err != nil {
			return Result{State: state}, fmt.Errorf("throttle submission: %w", err)
		}
		if waited > 0 {
			o.logger.Debug("submission throttled", zap.Duration("waited", waited))
		}
	}
	if err := o.transport.Emit(ctx, request.EventName, payload); err != nil {
		return Result{State: state}, fmt.Errorf("send request: %w", err)
	}
	o.logger.Info("request sent",
		zap.String("token", tok),
		zap.String("request_id", requestID),
		zap.String("website", payload.Website),
	)

	return o.observe(ctx, feed, state)
}

// Watch observes an existing token without submitting a request.
func (o *Observer) Watch(ctx context.Context, tok string) (Result, error) {
	if !token.Valid(tok) {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidToken, tok)
	}
	requestID, err := o.ids.NewID()
	if err != nil {
		return Result{}, fmt.Errorf("request id: %w", err)
	}
	feed, release := o.feed(tok)
	defer release()

	ctx, cancel := o.bound(ctx)
	defer cancel()

	state := o.start(tok, requestID, "")
	return o.observe(ctx, feed, state)
}

// Close releases the process-wide subscription, if any.
func (o *Observer) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.shared != nil {
		o.shared.Close()
		o.shared = nil
		o.sharedToken = ""
	}
}

func (o *Observer) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout > 0 {
		return context.WithTimeout(ctx, o.timeout)
	}
	return context.WithCancel(ctx)
}

// feed returns the subscription for tok. A process-scoped token keeps one
// subscription for the Observer's lifetime; otherwise it is released after
// the session.
func (o *Observer) feed(tok string) (Feed, func()) {
	if o.tokens.Scope() != token.ScopeProcess {
		f := o.transport.Subscribe(tok)
		return f, f.Close
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.shared == nil || o.sharedToken != tok {
		if o.shared != nil {
			o.shared.Close()
		}
		o.shared = o.transport.Subscribe(tok)
		o.sharedToken = tok
	}
	return o.shared, func() {}
}

// start resets all session state and shows it before anything is sent.
func (o *Observer) start(tok, requestID, website string) session.State {
	now := o.clock.Now()
	state := session.New(tok, requestID, website, now, o.opts)
	o.renderer.Reset(state)
	o.emitter.Emit(progress.Observation{
		Token:     tok,
		RequestID: requestID,
		Website:   website,
		TS:        now,
		Stage:     progress.StageSessionStart,
		Line:      session.LineConnecting,
		Style:     progress.StyleInfo,
		Phase:     string(state.Phase),
	})
	return state
}

func (o *Observer) observe(ctx context.Context, feed Feed, state session.State) (Result, error) {
	logger := o.logger.With(zap.String("token", state.Token), zap.String("request_id", state.RequestID))
	messages := feed.Messages()
	for {
		select {
		case <-ctx.Done():
			return Result{State: state}, fmt.Errorf("observe %s: %w", state.Token, ctx.Err())
		case raw, ok := <-messages:
			if !ok {
				return Result{State: state}, ErrChannelClosed
			}
			msg, err := progress.DecodeMessage(raw)
			if err != nil {
				logger.Warn("dropping undecodable message", zap.ByteString("raw", raw), zap.Error(err))
				continue
			}
			evt := o.classifier.Classify(msg)
			next := state.Apply(evt, o.clock.Now())
			o.logTransition(logger, evt, state, next)
			state = next
			o.renderer.Event(state, evt)
			o.publish(progress.StageEvent, state, evt)

			if state.Done() {
				o.publish(progress.StageSessionDone, state, evt)
				return o.result(state), nil
			}
		}
	}
}

func (o *Observer) publish(stage progress.Stage, s session.State, evt progress.Event) {
	entry, _ := s.Log.Last()
	o.emitter.Emit(progress.Observation{
		Token:     s.Token,
		RequestID: s.RequestID,
		Website:   s.Website,
		TS:        s.UpdatedAt,
		Stage:     stage,
		Kind:      evt.Kind(),
		Text:      evt.Text(),
		Line:      entry.Text,
		Style:     entry.Style,
		Pages:     s.Pages,
		Files:     s.Files,
		Phase:     string(s.Phase),
		Filename:  s.Filename,
	})
}

func (o *Observer) result(s session.State) Result {
	res := Result{
		Token:     s.Token,
		RequestID: s.RequestID,
		Filename:  s.Filename,
		State:     s,
	}
	res.ArchivePath, res.ArchiveOK = archive.Path(s.Filename)
	if !res.ArchiveOK {
		o.logger.Debug("archive filename rejected", zap.String("filename", s.Filename))
	}
	return res
}

type summary struct {
	Phase    string `diff:"phase"`
	Pages    int64  `diff:"pages"`
	Files    int64  `diff:"files"`
	Filename string `diff:"filename"`
	Loading  bool   `diff:"loading"`
	Ready    bool   `diff:"ready"`
	LogLen   int    `diff:"log_len"`
}

func summarize(s session.State) summary {
	return summary{
		Phase:    string(s.Phase),
		Pages:    s.Pages,
		Files:    s.Files,
		Filename: s.Filename,
		Loading:  s.Loading,
		Ready:    s.Ready,
		LogLen:   s.Log.Len(),
	}
}

func (o *Observer) logTransition(logger *zap.Logger, evt progress.Event, prev, next session.State) {
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		return
	}
	changes, err := diff.Diff(summarize(prev), summarize(next))
	if err != nil {
		logger.Debug("diff state", zap.Error(err))
		return
	}
	fields := make([]zap.Field, 0, len(changes)+1)
	fields = append(fields, zap.String("kind", string(evt.Kind())))
	for _, c := range changes {
		fields = append(fields, zap.Any(strings.Join(c.Path, "."), []any{c.From, c.To}))
	}
	logger.Debug("state transition", fields...)
}
