// Package timer measures remote calls. It is the optional instrumentation
// facility of a Service: when no sink is configured, or the process disabled
// timers through SERVICETOOLS_TIMERS, every operation is a no-op.
//
// Sinks:
//   - Prometheus: a histogram labelled by call, type and target.
//   - OpenTelemetry: one client span per measurement.
//
// A nil *Timer is valid and behaves like a disabled one.
package timer

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// EnvVar disables all timers of the process when set to 0/false/off/no.
const EnvVar = "SERVICETOOLS_TIMERS"

const instrumentationName = "github.com/unkn0wn-root/servicetools/timer"

var defaultBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// available is resolved once per process.
var available = sync.OnceValue(func() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(EnvVar))) {
	case "0", "false", "off", "no", "disabled":
		return false
	}
	return true
})

// Available reports whether the process allows timers at all.
func Available() bool { return available() }

type Options struct {
	Namespace      string                // prometheus namespace; "" => "servicetools"
	Registerer     prometheus.Registerer // nil => no histogram
	TracerProvider trace.TracerProvider  // nil => no spans
	Buckets        []float64             // nil => defaultBuckets (seconds)
	Tags           map[string]string     // base tags merged into every Start, e.g. type/target
	Disabled       bool
}

type Timer struct {
	enabled bool
	tags    map[string]string
	hist    *prometheus.HistogramVec
	tracer  trace.Tracer
}

// Handle is an in-flight measurement.
type Handle struct {
	id      uuid.UUID
	name    string
	tags    map[string]string
	started time.Time
	span    trace.Span

	mu      sync.Mutex
	stopped bool
	elapsed time.Duration
}

// Info is the accumulated data of one measurement. The zero Info is returned
// for nil handles and disabled timers.
type Info struct {
	ID      string            `json:"id,omitempty"`
	Value   time.Duration     `json:"value"`
	Tags    map[string]string `json:"tags,omitempty"`
	Started time.Time         `json:"started"`
	Running bool              `json:"running"`
}

func (i Info) IsZero() bool { return i.ID == "" }

func New(opts Options) (*Timer, error) {
	t := &Timer{tags: copyTags(opts.Tags)}
	if opts.Disabled || !Available() || (opts.Registerer == nil && opts.TracerProvider == nil) {
		return t, nil
	}

	if opts.Registerer != nil {
		ns := opts.Namespace
		if ns == "" {
			ns = "servicetools"
		}
		buckets := opts.Buckets
		if len(buckets) == 0 {
			buckets = defaultBuckets
		}
		hist := prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "remote_call_duration_seconds",
				Help:      "Duration of dispatched remote calls, cache hits included",
				Buckets:   buckets,
			},
			[]string{"call", "type", "target"},
		)
		if err := opts.Registerer.Register(hist); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, err
			}
			existing, ok := are.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				return nil, err
			}
			hist = existing
		}
		t.hist = hist
	}
	if opts.TracerProvider != nil {
		t.tracer = opts.TracerProvider.Tracer(instrumentationName)
	}
	t.enabled = true
	return t, nil
}

// Disabled returns a timer whose operations are all no-ops.
func Disabled() *Timer { return &Timer{} }

func (t *Timer) Enabled() bool { return t != nil && t.enabled }

// Start opens a measurement named after tags["call"]. Returns nil when disabled.
func (t *Timer) Start(ctx context.Context, tags map[string]string) *Handle {
	if !t.Enabled() {
		return nil
	}
	all := copyTags(t.tags)
	for k, v := range tags {
		all[k] = v
	}
	name := all["call"]
	if name == "" {
		name = "remote_call"
	}

	h := &Handle{
		id:      uuid.New(),
		name:    name,
		tags:    all,
		started: time.Now(),
	}
	if t.tracer != nil {
		if ctx == nil {
			ctx = context.Background()
		}
		attrs := make([]attribute.KeyValue, 0, len(all))
		for k, v := range all {
			attrs = append(attrs, attribute.String("servicetools."+k, v))
		}
		_, h.span = t.tracer.Start(ctx, name,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(attrs...),
		)
	}
	return h
}

// Stop closes the measurement. Stopping a nil or already stopped handle is a
// no-op that reports true.
func (t *Timer) Stop(h *Handle) bool {
	if h == nil || !t.Enabled() {
		return true
	}
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return true
	}
	h.stopped = true
	h.elapsed = time.Since(h.started)
	elapsed := h.elapsed
	h.mu.Unlock()

	if t.hist != nil {
		t.hist.WithLabelValues(h.tags["call"], h.tags["type"], h.tags["target"]).Observe(elapsed.Seconds())
	}
	if h.span != nil {
		h.span.End()
	}
	return true
}

func (t *Timer) Info(h *Handle) Info {
	if h == nil || !t.Enabled() {
		return Info{}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	v := h.elapsed
	if !h.stopped {
		v = time.Since(h.started)
	}
	return Info{
		ID:      h.id.String(),
		Value:   v,
		Tags:    copyTags(h.tags),
		Started: h.started,
		Running: !h.stopped,
	}
}

func copyTags(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
