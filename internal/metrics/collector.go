package metrics

import (
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rohankatakam/changeminer/internal/errors"
	"github.com/rohankatakam/changeminer/internal/mining"
	"github.com/rohankatakam/changeminer/internal/models"
)

const namespace = "changeminer"

// Collector exposes engine events as Prometheus metrics. Each collector owns
// its registry so several runs in one process never clash.
type Collector struct {
	registry *prometheus.Registry

	commits         prometheus.Counter
	modifications   *prometheus.CounterVec
	created         prometheus.Counter
	updated         prometheus.Counter
	relabeled       *prometheus.CounterVec
	trashed         prometheus.Counter
	inconsistencies *prometheus.CounterVec

	liveFiles   prometheus.Gauge
	liveMethods prometheus.Gauge
	trashSize   prometheus.Gauge
	runSeconds  prometheus.Gauge
}

var _ mining.Observer = (*Collector)(nil)

// NewCollector creates and registers every metric
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		commits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_processed_total",
			Help:      "Commits processed by the reconciliation engine.",
		}),
		modifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "modifications_total",
			Help:      "File modifications processed, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "methods_created_total",
			Help:      "Method identities created.",
		}),
		updated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "methods_updated_total",
			Help:      "Change events recorded on existing identities.",
		}),
		relabeled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "methods_relabeled_total",
			Help:      "Identities whose long name changed, by reason.",
		}, []string{"reason"}),
		trashed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "methods_trashed_total",
			Help:      "Identities moved to the trash.",
		}),
		inconsistencies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inconsistencies_total",
			Help:      "Recovered inconsistencies, by kind.",
		}, []string{"kind"}),
		liveFiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_files",
			Help:      "Files tracked after the last run.",
		}),
		liveMethods: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_methods",
			Help:      "Live method identities after the last run.",
		}),
		trashSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "trashed_methods",
			Help:      "Methods in the trash after the last run.",
		}),
		runSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
	}

	c.registry.MustRegister(
		c.commits, c.modifications, c.created, c.updated, c.relabeled,
		c.trashed, c.inconsistencies,
		c.liveFiles, c.liveMethods, c.trashSize, c.runSeconds,
	)
	return c
}

// Registry returns the registry holding the collector's metrics
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) CommitProcessed(*models.Commit) { c.commits.Inc() }

func (c *Collector) ModificationProcessed(kind models.ModificationKind, skipped bool) {
	outcome := "processed"
	if skipped {
		outcome = "skipped"
	}
	c.modifications.WithLabelValues(string(kind), outcome).Inc()
}

func (c *Collector) MethodsCreated(n int) { c.created.Add(float64(n)) }
func (c *Collector) MethodsUpdated(n int) { c.updated.Add(float64(n)) }
func (c *Collector) MethodsTrashed(n int) { c.trashed.Add(float64(n)) }

func (c *Collector) MethodsRelabeled(reason string, n int) {
	c.relabeled.WithLabelValues(reason).Add(float64(n))
}

func (c *Collector) Inconsistency(kind string) {
	c.inconsistencies.WithLabelValues(kind).Inc()
}

// ObserveRun records the engine's state at the end of a run
func (c *Collector) ObserveRun(e *mining.Engine, stats mining.RunStats) {
	c.liveFiles.Set(float64(e.Registry().FileCount()))
	c.liveMethods.Set(float64(e.Registry().MethodCount()))
	c.trashSize.Set(float64(e.Ledger().TrashedCount()))
	c.runSeconds.Set(stats.Duration.Seconds())
}

// WriteTextfile writes the metrics in the text exposition format, for the
// node_exporter textfile collector
func (c *Collector) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.FileSystemError(err, "failed to create metrics directory").WithContext("path", path)
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return errors.FileSystemError(err, "failed to write metrics textfile").WithContext("path", path)
	}
	return nil
}
