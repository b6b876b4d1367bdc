// Package metrics records a scaling run as Prometheus metrics.
//
// Metrics exposed:
//   - scale_telemetry_available_replicas: Gauge of the last sampled available replicas
//   - scale_telemetry_nodes_total: Gauge of nodes listed on the last tick
//   - scale_telemetry_nodes_ready: Gauge of nodes observed ready so far
//   - scale_telemetry_elapsed_seconds: Gauge of seconds since sampling started
//   - scale_telemetry_samples_total: Counter of samples taken
//   - scale_telemetry_node_time_to_ready_seconds: Histogram of time to ready for new nodes
//   - scale_telemetry_reached_target: Gauge set to 1 when the run reached its target
//
// All metrics carry the namespace and deployment of the run as constant labels.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wesleyemery/k8s-scale-telemetry/pkg/telemetry"
)

// Recorder holds the Prometheus collectors for a single run
type Recorder struct {
	AvailableReplicas prometheus.Gauge
	NodesTotal        prometheus.Gauge
	NodesReady        prometheus.Gauge
	ElapsedSeconds    prometheus.Gauge
	SamplesTotal      prometheus.Counter
	NodeTimeToReady   prometheus.Histogram
	ReachedTarget     prometheus.Gauge
	TargetReplicas    prometheus.Gauge
}

var _ telemetry.Observer = (*Recorder)(nil)

// NewRecorder creates and registers the run collectors with reg
func NewRecorder(reg prometheus.Registerer, namespace, deployment string) *Recorder {
	labels := prometheus.Labels{
		"namespace":  namespace,
		"deployment": deployment,
	}
	factory := promauto.With(reg)

	return &Recorder{
		AvailableReplicas: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "scale_telemetry_available_replicas",
			Help:        "Available replicas observed on the last tick",
			ConstLabels: labels,
		}),

		NodesTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "scale_telemetry_nodes_total",
			Help:        "Nodes listed on the last tick",
			ConstLabels: labels,
		}),

		NodesReady: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "scale_telemetry_nodes_ready",
			Help:        "Nodes observed ready since sampling started",
			ConstLabels: labels,
		}),

		ElapsedSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "scale_telemetry_elapsed_seconds",
			Help:        "Seconds between the start of sampling and the last tick",
			ConstLabels: labels,
		}),

		SamplesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "scale_telemetry_samples_total",
			Help:        "Total number of samples taken",
			ConstLabels: labels,
		}),

		NodeTimeToReady: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "scale_telemetry_node_time_to_ready_seconds",
			Help:        "Seconds from first sighting to Ready for nodes added during the run",
			ConstLabels: labels,
			// Node provisioning takes tens of seconds to several minutes
			Buckets: []float64{10, 20, 30, 45, 60, 90, 120, 180, 240, 300, 600},
		}),

		ReachedTarget: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "scale_telemetry_reached_target",
			Help:        "1 if the deployment reached its target replicas, 0 otherwise",
			ConstLabels: labels,
		}),

		TargetReplicas: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "scale_telemetry_target_replicas",
			Help:        "Target replica count of the run",
			ConstLabels: labels,
		}),
	}
}

// OnSample updates the gauges from the latest sample
func (r *Recorder) OnSample(sample telemetry.Sample) {
	r.AvailableReplicas.Set(float64(sample.AvailableReplicas))
	r.NodesTotal.Set(float64(sample.TotalNodes))
	r.NodesReady.Set(float64(sample.ReadyNodes))
	r.ElapsedSeconds.Set(float64(sample.ElapsedSeconds))
	r.SamplesTotal.Inc()
}

// OnNodeReady observes time to ready for nodes added during the run
func (r *Recorder) OnNodeReady(node telemetry.NodeObservation) {
	if node.Initial {
		return
	}
	if d, ok := node.TimeToReady(); ok {
		r.NodeTimeToReady.Observe(float64(d))
	}
}

// Complete records the outcome of a finished run
func (r *Recorder) Complete(result *telemetry.RunResult) {
	r.TargetReplicas.Set(float64(result.TargetReplicas))
	if result.ReachedTarget {
		r.ReachedTarget.Set(1)
	} else {
		r.ReachedTarget.Set(0)
	}
}

// WriteTextfile writes everything gathered by g to path in the text
// exposition format read by the node exporter textfile collector
func WriteTextfile(g prometheus.Gatherer, path string) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("failed to write metrics textfile %s: %w", path, err)
	}
	return nil
}
