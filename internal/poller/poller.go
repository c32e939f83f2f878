// Package poller reconciles playback state on a fixed interval.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mitchellh/hashstructure/v2"
	"go.uber.org/zap"

	"github.com/tessro/sheetplayer/internal/core"
	apperrors "github.com/tessro/sheetplayer/internal/errors"
)

// DefaultInterval is the time between poll cycles.
const DefaultInterval = 10 * time.Second

// ErrAlreadyStarted is returned by Start on a poller that has run before.
var ErrAlreadyStarted = errors.New("poller already started")

// State is the lifecycle state of a Poller.
type State int

const (
	Idle State = iota
	Polling
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Polling:
		return "polling"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Update is the outcome of one poll cycle.
type Update struct {
	// State is nil when the cycle failed.
	State *core.PlayerState

	// Err is the failure of the cycle. Audio feature errors are not
	// reported here; the cycle succeeds with AudioFeatures unset.
	Err error

	// Status is the poller state after the cycle.
	Status State

	// Changed is true when the track, play flag or descriptor source
	// differs from the previous successful cycle.
	Changed bool

	At time.Time
}

// Poller runs poll cycles against a core.Player.
type Poller struct {
	player   core.Player
	interval time.Duration
	clock    clockwork.Clock
	logger   *zap.Logger

	updates chan Update
	stop    chan struct{}
	done    chan struct{}

	mu       sync.Mutex
	state    State
	started  bool
	stopped  bool
	lastHash uint64
	hasLast  bool
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the time between cycles.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithClock sets the clock that drives the ticker.
func WithClock(c clockwork.Clock) Option {
	return func(p *Poller) { p.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// New creates an idle Poller.
func New(player core.Player, opts ...Option) *Poller {
	p := &Poller{
		player:   player,
		interval: DefaultInterval,
		clock:    clockwork.NewRealClock(),
		logger:   zap.NewNop(),
		updates:  make(chan Update, 16),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Updates returns the channel of cycle results. It is closed when the
// loop exits. Updates are dropped if the channel is full.
func (p *Poller) Updates() <-chan Update {
	return p.updates
}

// Done is closed once the loop has exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// State returns the current lifecycle state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Start runs one cycle immediately and then one per interval, in a
// background goroutine, until Stop is called or ctx is done.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.started = true
	p.state = Polling
	p.mu.Unlock()

	ticker := p.clock.NewTicker(p.interval)
	go p.loop(ctx, ticker)
	return nil
}

// Stop ends the loop without waiting for it. A cycle already in flight
// runs to completion but its result is discarded.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	if p.state == Polling {
		p.state = Idle
	}
	close(p.stop)
}

func (p *Poller) loop(ctx context.Context, ticker clockwork.Ticker) {
	defer close(p.done)
	defer close(p.updates)
	defer ticker.Stop()

	for {
		if !p.runCycle(ctx) {
			return
		}

		select {
		case <-ctx.Done():
			p.Stop()
			return
		case <-p.stop:
			return
		case <-ticker.Chan():
		}
	}
}

// runCycle performs one cycle and publishes its result. It returns false
// when the loop must exit.
func (p *Poller) runCycle(ctx context.Context) bool {
	select {
	case <-p.stop:
		return false
	default:
	}

	u, terminal := p.cycle(ctx)

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return false
	}
	if terminal {
		p.state = Unauthenticated
	}
	u.Status = p.state
	p.mu.Unlock()

	if terminal {
		// The consumer must see why polling ended.
		select {
		case p.updates <- u:
		case <-p.stop:
		case <-ctx.Done():
		}
		return false
	}

	select {
	case p.updates <- u:
	default:
		p.logger.Debug("dropping poll update, consumer is behind")
	}
	return true
}

func (p *Poller) cycle(ctx context.Context) (Update, bool) {
	token, err := p.player.EnsureToken(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Update{Err: err, At: p.clock.Now()}, false
		}
		if !errors.Is(err, apperrors.ErrNotAuthenticated) && !errors.Is(err, apperrors.ErrNoToken) {
			p.logger.Warn("token unavailable", zap.Error(err))
			return Update{Err: err, At: p.clock.Now()}, false
		}
		p.logger.Warn("session ended", zap.Error(err))
		return Update{Err: err, At: p.clock.Now()}, true
	}

	snap, err := p.player.CurrentlyPlaying(ctx, token)
	if err != nil {
		p.logger.Warn("failed to fetch currently playing", zap.Error(err))
		return Update{Err: err, At: p.clock.Now()}, false
	}

	state := &core.PlayerState{Snapshot: snap}
	if snap.HasTrack() {
		d, err := p.player.AudioFeatures(ctx, token, snap.Track.ID)
		if err != nil {
			p.logger.Warn("audio features unavailable",
				zap.String("track_id", snap.Track.ID), zap.Error(err))
		} else {
			state.AudioFeatures = d
		}
	}

	return Update{State: state, Changed: p.changed(state), At: p.clock.Now()}, false
}

// identity is the part of a PlayerState that counts as a change.
type identity struct {
	TrackID     string
	IsPlaying   bool
	HasFeatures bool
	Estimated   bool
}

func (p *Poller) changed(state *core.PlayerState) bool {
	id := identity{TrackID: state.TrackID()}
	if state.Snapshot != nil {
		id.IsPlaying = state.Snapshot.IsPlaying
	}
	if state.AudioFeatures != nil {
		id.HasFeatures = true
		id.Estimated = state.AudioFeatures.IsEstimated
	}

	h, err := hashstructure.Hash(id, hashstructure.FormatV2, nil)
	if err != nil {
		return true
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	changed := !p.hasLast || h != p.lastHash
	p.lastHash = h
	p.hasLast = true
	return changed
}
