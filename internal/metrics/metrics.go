package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bnema/nap-alarm/internal/failure"
	"github.com/bnema/nap-alarm/internal/logger"
)

const namespace = "nap_alarm"

// Recorder holds the run's counters. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	polls          *prometheus.CounterVec
	pollErrors     *prometheus.CounterVec
	minutesAsleep  prometheus.Gauge
	schedules      *prometheus.CounterVec
	lastPollTime   prometheus.Gauge
	detectionDelay prometheus.Histogram
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "polls_total",
			Help:      "Number of completed sleep polls grouped by detection outcome.",
		}, []string{"asleep"}),
		pollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "errors_total",
			Help:      "Number of failed sleep polls grouped by failure kind.",
		}, []string{"kind"}),
		minutesAsleep: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "minutes_asleep",
			Help:      "Total minutes asleep reported by the most recent poll.",
		}),
		lastPollTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "last_poll_timestamp_seconds",
			Help:      "Unix timestamp of the most recent successful poll.",
		}),
		schedules: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "events_total",
			Help:      "Number of alarm insertion attempts grouped by result.",
		}, []string{"result"}),
		detectionDelay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "time_to_detection_seconds",
			Help:      "Time between the first poll and the positive detection.",
			Buckets:   prometheus.ExponentialBuckets(60, 2, 10),
		}),
	}

	r.registry.MustRegister(r.polls, r.pollErrors, r.minutesAsleep, r.lastPollTime, r.schedules, r.detectionDelay)
	return r
}

// ObservePoll records one successful poll
func (r *Recorder) ObservePoll(asleep bool, minutesAsleep int, at time.Time) {
	if r == nil {
		return
	}
	label := "false"
	if asleep {
		label = "true"
	}
	r.polls.WithLabelValues(label).Inc()
	r.minutesAsleep.Set(float64(minutesAsleep))
	r.lastPollTime.Set(float64(at.Unix()))
}

func (r *Recorder) ObservePollError(err error) {
	if r == nil {
		return
	}
	r.pollErrors.WithLabelValues(failure.KindOf(err).String()).Inc()
}

func (r *Recorder) ObserveDetection(waited time.Duration) {
	if r == nil {
		return
	}
	r.detectionDelay.Observe(waited.Seconds())
}

func (r *Recorder) ObserveSchedule(err error) {
	if r == nil {
		return
	}
	result := "success"
	if err != nil {
		result = failure.KindOf(err).String()
	}
	r.schedules.WithLabelValues(result).Inc()
}

// Handler exposes the recorder's registry
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done
func (r *Recorder) Serve(ctx context.Context, addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, failure.New("serve metrics", failure.KindConfig, "failed to listen on "+addr).WithCause(err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("metrics listening", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics shutdown error", "error", err)
		}
	}()

	return ln.Addr(), nil
}
