package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"Conquest/modules/kit/errx"
)

const namespace = "conquest"

// Observer 把命令、计时器、战斗和落库的统计写进 prometheus。
type Observer struct {
	registry *prometheus.Registry

	commands    *prometheus.CounterVec
	commandTime *prometheus.HistogramVec
	timers      *prometheus.CounterVec
	battles     *prometheus.CounterVec
	players     prometheus.Gauge
	flushes     *prometheus.CounterVec
	flushBatch  prometheus.Histogram
	flushTime   prometheus.Histogram
}

func New() *Observer {
	o := &Observer{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "commands_total",
			Help: "Game commands by name and outcome.",
		}, []string{"command", "outcome"}),
		commandTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "command_duration_seconds",
			Help:    "Game command latency including settlement.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}, []string{"command"}),
		timers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "timers_applied_total",
			Help: "Matured construction and training timers applied.",
		}, []string{"kind"}),
		battles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "battles_total",
			Help: "Resolved battles by winner side.",
		}, []string{"winner"}),
		players: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "players",
			Help: "Registered players.",
		}),
		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "flushes_total",
			Help: "Snapshot batches written to storage.",
		}, []string{"outcome"}),
		flushBatch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "flush_batch_size",
			Help:    "Snapshots per storage write.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		flushTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "flush_duration_seconds",
			Help:    "Storage write latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	o.registry.MustRegister(
		o.commands, o.commandTime, o.timers, o.battles, o.players,
		o.flushes, o.flushBatch, o.flushTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return o
}

func (o *Observer) CommandDone(command string, err error, elapsed time.Duration) {
	o.commands.WithLabelValues(command, outcome(err)).Inc()
	o.commandTime.WithLabelValues(command).Observe(elapsed.Seconds())
}

func (o *Observer) TimerApplied(kind string) {
	o.timers.WithLabelValues(kind).Inc()
}

func (o *Observer) BattleResolved(attackerWon bool) {
	winner := "defender"
	if attackerWon {
		winner = "attacker"
	}
	o.battles.WithLabelValues(winner).Inc()
}

func (o *Observer) PlayersRegistered(total int) {
	o.players.Set(float64(total))
}

func (o *Observer) FlushDone(batch int, err error, elapsed time.Duration) {
	o.flushes.WithLabelValues(outcome(err)).Inc()
	o.flushBatch.Observe(float64(batch))
	o.flushTime.Observe(elapsed.Seconds())
}

// Handler 暴露 /metrics。
func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})
}

func (o *Observer) Registry() *prometheus.Registry { return o.registry }

// outcome: ok / rejected / error。
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errx.IsRejected(err):
		return "rejected"
	default:
		return "error"
	}
}
