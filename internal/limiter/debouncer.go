package limiter

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const (
	// DefaultWindow is the sampling period of a stream.
	DefaultWindow = 2 * time.Second
	// DefaultIdleAfter is how long a stream may see no events before it is evicted.
	DefaultIdleAfter = 10 * time.Minute
)

var (
	debouncerStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lanxat_debouncer_streams",
		Help: "Number of live per-user debounce streams",
	})

	debouncerEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lanxat_debouncer_events_total",
		Help: "Debouncer events by outcome (pushed, emitted, superseded)",
	}, []string{"outcome"})
)

// Ticker is the part of time.Ticker a stream uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a ticker with the given period.
type TickerFunc func(d time.Duration) Ticker

type stdTicker struct{ *time.Ticker }

func (t stdTicker) C() <-chan time.Time { return t.Ticker.C }

// NewStdTicker wraps time.NewTicker.
func NewStdTicker(d time.Duration) Ticker { return stdTicker{time.NewTicker(d)} }

// Handler receives the latest event of a window. It runs in its own goroutine.
type Handler[E any] func(userID int64, e E)

// Option configures a Debouncer.
type Option func(*options)

type options struct {
	window    time.Duration
	idleAfter time.Duration
	newTicker TickerFunc
	log       *zap.Logger
}

// WithWindow sets the sampling window.
func WithWindow(d time.Duration) Option { return func(o *options) { o.window = d } }

// WithIdleAfter sets the eviction delay for streams without events.
func WithIdleAfter(d time.Duration) Option { return func(o *options) { o.idleAfter = d } }

// WithTicker replaces the ticker source.
func WithTicker(f TickerFunc) Option { return func(o *options) { o.newTicker = f } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

type stream[E any] struct {
	ticker Ticker
	done   chan struct{}
	latest E
	has    bool
	idle   int // consecutive empty windows
}

// Debouncer samples per-user event streams: each window forwards only the latest event pushed
// during it, empty windows forward nothing. Streams are created on the first event and evicted
// after idleAfter without events.
type Debouncer[E any] struct {
	handle    Handler[E]
	window    time.Duration
	idleTicks int
	newTicker TickerFunc
	log       *zap.Logger

	mu      sync.Mutex
	streams map[int64]*stream[E]
	closed  bool
}

// NewDebouncer constructs a Debouncer delivering sampled events to handle.
func NewDebouncer[E any](handle Handler[E], opts ...Option) *Debouncer[E] {
	o := options{window: DefaultWindow, idleAfter: DefaultIdleAfter, newTicker: NewStdTicker}
	for _, opt := range opts {
		opt(&o)
	}
	if o.window <= 0 {
		o.window = DefaultWindow
	}
	if o.idleAfter < o.window {
		o.idleAfter = o.window
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	idleTicks := int((o.idleAfter + o.window - 1) / o.window)
	return &Debouncer[E]{
		handle:    handle,
		window:    o.window,
		idleTicks: idleTicks,
		newTicker: o.newTicker,
		log:       o.log,
		streams:   make(map[int64]*stream[E]),
	}
}

// Push records e as the latest event of the user's stream, creating the stream if needed.
// It returns false after Close.
func (d *Debouncer[E]) Push(userID int64, e E) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	s, ok := d.streams[userID]
	if !ok {
		s = &stream[E]{ticker: d.newTicker(d.window), done: make(chan struct{})}
		d.streams[userID] = s
		debouncerStreams.Inc()
		go d.run(userID, s)
	}
	if s.has {
		debouncerEvents.WithLabelValues("superseded").Inc()
	}
	s.latest, s.has, s.idle = e, true, 0
	debouncerEvents.WithLabelValues("pushed").Inc()
	return true
}

func (d *Debouncer[E]) run(userID int64, s *stream[E]) {
	for {
		select {
		case <-s.done:
			return
		case <-s.ticker.C():
			if !d.tick(userID, s) {
				return
			}
		}
	}
}

// tick handles one window boundary and reports whether the stream is still alive.
func (d *Debouncer[E]) tick(userID int64, s *stream[E]) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	if s.has {
		e := s.latest
		var zero E
		s.latest, s.has = zero, false
		d.mu.Unlock()
		debouncerEvents.WithLabelValues("emitted").Inc()
		go d.handle(userID, e)
		return true
	}

	s.idle++
	if s.idle < d.idleTicks {
		d.mu.Unlock()
		return true
	}
	if d.streams[userID] == s {
		delete(d.streams, userID)
		debouncerStreams.Dec()
	}
	d.mu.Unlock()
	s.ticker.Stop()
	d.log.Debug("debounce stream evicted", zap.Int64("user", userID))
	return false
}

// Len reports the number of live streams.
func (d *Debouncer[E]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.streams)
}

// Close stops every stream. Pending events are dropped.
func (d *Debouncer[E]) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for id, s := range d.streams {
		close(s.done)
		s.ticker.Stop()
		delete(d.streams, id)
		debouncerStreams.Dec()
	}
}
