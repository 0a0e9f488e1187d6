package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// UpdateKind tags what a Runner pushes to its subscribers.
type UpdateKind string

const (
	UpdateState  UpdateKind = "state"
	UpdateScreen UpdateKind = "screen"
	UpdateExit   UpdateKind = "exit"
)

// Update is one event fanned out to connected clients.
type Update struct {
	Kind       UpdateKind         `json:"type"`
	View       *model.SessionView `json:"view,omitempty"`
	Notices    []model.Notice     `json:"notices,omitempty"`
	Fullscreen *bool              `json:"fullscreen,omitempty"`
}

const (
	subscriberBuffer = 32
	eventBuffer      = 16
	unloadTimeout    = 3 * time.Second
)

// Runner owns one Orchestrator and serializes everything that touches it:
// commands, clock ticks and submission completions.
type Runner struct {
	o   *Orchestrator
	src TickSource
	log zerolog.Logger

	events chan func(ctx context.Context)
	done   chan struct{}

	// lastActive is only touched by the loop goroutine.
	lastActive time.Time

	mu     sync.Mutex
	subs   map[uint64]chan Update
	nextID uint64
	closed bool
}

// NewRunner wraps o. The Runner takes over o's deferrer and screen.
func NewRunner(o *Orchestrator, src TickSource, log zerolog.Logger) *Runner {
	if src == nil {
		src = SystemTime{}
	}
	r := &Runner{
		o:      o,
		src:    src,
		log:    log.With().Str("component", "session_runner").Str("session_id", o.ref.SessionID).Logger(),
		events: make(chan func(ctx context.Context), eventBuffer),
		done:   make(chan struct{}),
		subs:   make(map[uint64]chan Update),
	}
	o.bindRuntime(r.deferWork, runnerScreen{r: r})
	return r
}

// Run drives the session until it closes or ctx is cancelled. On
// cancellation the session gets one last unload so progress survives a
// restart. A runner left idle for Config.IdleTimeout unloads and stops too.
func (r *Runner) Run(ctx context.Context) {
	ticker := r.src.NewTicker(time.Second)
	defer ticker.Stop()
	defer r.shutdown()

	r.log.Debug().Msg("Session runner started")
	r.lastActive = r.src.Now()
	for {
		select {
		case <-ctx.Done():
			saveCtx, cancel := context.WithTimeout(context.Background(), unloadTimeout)
			r.o.Unload(saveCtx)
			cancel()
			r.log.Debug().Msg("Session runner stopped")
			return
		case fn := <-r.events:
			fn(ctx)
		case <-ticker.C():
			r.publish(r.o.Tick(ctx))
			if r.idle(r.src.Now()) {
				r.o.Unload(ctx)
				r.log.Info().Str("phase", string(r.o.Phase())).Msg("Session idle, releasing runner")
				return
			}
		}

		if r.o.Closed() {
			r.log.Debug().Str("phase", string(r.o.Phase())).Msg("Session closed, runner exiting")
			return
		}
	}
}

// Do runs fn on the session goroutine and waits for its result.
func (r *Runner) Do(ctx context.Context, fn func(ctx context.Context, o *Orchestrator) (Result, error)) (Result, model.SessionView, error) {
	type reply struct {
		res  Result
		view model.SessionView
		err  error
	}
	ch := make(chan reply, 1)
	ev := func(loopCtx context.Context) {
		res, err := fn(loopCtx, r.o)
		r.publish(res)
		ch <- reply{res: res, view: r.o.View(), err: err}
	}

	select {
	case r.events <- ev:
	case <-r.done:
		return Result{}, model.SessionView{}, ErrSessionClosed
	case <-ctx.Done():
		return Result{}, model.SessionView{}, ctx.Err()
	}

	select {
	case rep := <-ch:
		return rep.res, rep.view, rep.err
	case <-r.done:
		// The loop may have answered just before exiting.
		select {
		case rep := <-ch:
			return rep.res, rep.view, rep.err
		default:
			return Result{}, model.SessionView{}, ErrSessionClosed
		}
	case <-ctx.Done():
		return Result{}, model.SessionView{}, ctx.Err()
	}
}

// Dispatch runs one Command on the session goroutine.
func (r *Runner) Dispatch(ctx context.Context, cmd Command) (Result, model.SessionView, error) {
	return r.Do(ctx, func(ctx context.Context, o *Orchestrator) (Result, error) {
		r.lastActive = r.src.Now()
		return o.Dispatch(ctx, cmd)
	})
}

// View returns a snapshot taken on the session goroutine.
func (r *Runner) View(ctx context.Context) (model.SessionView, error) {
	_, v, err := r.Do(ctx, func(_ context.Context, o *Orchestrator) (Result, error) {
		return Result{Phase: o.Phase()}, nil
	})
	return v, err
}

// Subscribe registers a client. The returned channel is closed when the
// runner stops or cancel is called.
func (r *Runner) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, subscriberBuffer)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		close(ch)
		return ch, func() {}
	}
	id := r.nextID
	r.nextID++
	r.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if c, ok := r.subs[id]; ok {
				delete(r.subs, id)
				close(c)
			}
		})
	}
}

// idle reports whether the runner has gone unused for the configured idle
// timeout: no clients and a session that cannot move on by itself.
func (r *Runner) idle(now time.Time) bool {
	timeout := r.o.cfg.IdleTimeout
	if timeout <= 0 {
		return false
	}
	if r.subscribers() > 0 || !r.o.Idle() {
		r.lastActive = now
		return false
	}
	return now.Sub(r.lastActive) >= timeout
}

func (r *Runner) subscribers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Ref returns the identity of the session this runner owns.
func (r *Runner) Ref() model.SessionRef { return r.o.Ref() }

// Done is closed once the runner loop has exited.
func (r *Runner) Done() <-chan struct{} { return r.done }

// deferWork is the Runner's Deferrer: work runs on its own goroutine and
// done is posted back onto the session loop.
func (r *Runner) deferWork(work func() error, done func(error)) {
	go func() {
		err := work()
		ev := func(context.Context) {
			done(err)
			r.publish(r.o.result())
		}
		select {
		case r.events <- ev:
		case <-r.done:
			r.log.Warn().AnErr("submit_err", err).Msg("Runner stopped before submission completed")
		}
	}()
}

func (r *Runner) publish(res Result) {
	view := r.o.View()
	u := Update{Kind: UpdateState, View: &view, Notices: res.Notices}
	if res.Exit {
		u.Kind = UpdateExit
	}
	r.broadcast(u)
}

// broadcast fans u out and reports how many subscribers received it. Slow
// subscribers miss updates rather than stall the session.
func (r *Runner) broadcast(u Update) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	sent := 0
	for id, ch := range r.subs {
		select {
		case ch <- u:
			sent++
		default:
			r.log.Debug().Uint64("subscriber", id).Str("kind", string(u.Kind)).Msg("Subscriber buffer full, dropping update")
		}
	}
	return sent
}

func (r *Runner) shutdown() {
	close(r.done)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for id, ch := range r.subs {
		delete(r.subs, id)
		close(ch)
	}
}

// runnerScreen asks connected clients to change display mode.
type runnerScreen struct{ r *Runner }

func (s runnerScreen) EnterFullscreen() error { return s.set(true) }
func (s runnerScreen) ExitFullscreen() error  { return s.set(false) }

func (s runnerScreen) set(on bool) error {
	if s.r.broadcast(Update{Kind: UpdateScreen, Fullscreen: &on}) == 0 {
		return ErrNoClient
	}
	return nil
}
