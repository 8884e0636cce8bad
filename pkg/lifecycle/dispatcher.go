package lifecycle

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/LingByte/TutorConnect/pkg/metrics"
	"go.uber.org/zap"
)

const sinkTimeout = 5 * time.Second

// Sink consumes lifecycle events. Handle runs on the dispatcher worker, one
// event at a time, in publish order.
type Sink interface {
	Name() string
	Handle(ctx context.Context, ev Event) error
}

// Dispatcher moves events off the hub goroutine onto a single worker that feeds
// every sink. Publish never blocks: a full queue drops the event.
type Dispatcher struct {
	queue    chan Event
	sinks    []Sink
	instance string
	logger   *zap.Logger
	metrics  *metrics.Metrics
	closed   atomic.Bool
	stop     chan struct{}
	done     chan struct{}
}

func NewDispatcher(queueSize int, instance string, logger *zap.Logger, m *metrics.Metrics, sinks ...Sink) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	d := &Dispatcher{
		queue:    make(chan Event, queueSize),
		sinks:    sinks,
		instance: instance,
		logger:   logger,
		metrics:  m,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

// Publish enqueues ev, stamping the instance id and time when unset.
func (d *Dispatcher) Publish(ev Event) {
	if d.closed.Load() {
		return
	}
	if ev.Instance == "" {
		ev.Instance = d.instance
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	select {
	case d.queue <- ev:
	default:
		d.metrics.Lifecycle.WithLabelValues("queue", "dropped").Inc()
		d.logger.Warn("lifecycle queue full, event dropped",
			zap.String("type", string(ev.Type)),
			zap.String("room", ev.Room))
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case ev := <-d.queue:
			d.dispatch(ev)
		case <-d.stop:
			for {
				select {
				case ev := <-d.queue:
					d.dispatch(ev)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) dispatch(ev Event) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		err := sink.Handle(ctx, ev)
		cancel()
		if err != nil {
			d.metrics.Lifecycle.WithLabelValues(sink.Name(), "error").Inc()
			d.logger.Warn("lifecycle sink failed",
				zap.String("sink", sink.Name()),
				zap.String("type", string(ev.Type)),
				zap.String("room", ev.Room),
				zap.Error(err))
			continue
		}
		d.metrics.Lifecycle.WithLabelValues(sink.Name(), "ok").Inc()
	}
}

// Close stops accepting events and waits for queued ones to be handled or ctx
// to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	if d.closed.CompareAndSwap(false, true) {
		close(d.stop)
	}
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
