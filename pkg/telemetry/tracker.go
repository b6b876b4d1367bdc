package telemetry

import (
	"k8s.io/utils/ptr"
)

// ReadinessTracker accumulates per-node first-seen and ready timestamps
// over a single run. It is not safe for concurrent use.
type ReadinessTracker struct {
	initial map[string]bool
	nodes   map[string]*NodeObservation
	ready   int
}

// NewReadinessTracker creates a tracker. Nodes named in initial are excluded
// from the aggregate statistics.
func NewReadinessTracker(initial []string) *ReadinessTracker {
	t := &ReadinessTracker{
		initial: make(map[string]bool, len(initial)),
		nodes:   make(map[string]*NodeObservation),
	}
	for _, name := range initial {
		t.initial[name] = true
	}
	return t
}

// Observe records a node as seen at elapsed, and as ready if ready is true.
// Timestamps that are already set are never overwritten. It returns true
// when this call set the node's ready timestamp.
func (t *ReadinessTracker) Observe(node string, ready bool, elapsed int) bool {
	obs, ok := t.nodes[node]
	if !ok {
		obs = &NodeObservation{Name: node, Initial: t.initial[node]}
		t.nodes[node] = obs
	}

	if obs.FirstSeenAt == nil {
		obs.FirstSeenAt = ptr.To(elapsed)
	}

	if !ready || obs.ReadyAt != nil {
		return false
	}

	// A node seen earlier keeps its first-seen time, so ReadyAt never precedes it
	obs.ReadyAt = ptr.To(max(elapsed, *obs.FirstSeenAt))
	t.ready++
	return true
}

// Node returns a copy of the observation for name
func (t *ReadinessTracker) Node(name string) (NodeObservation, bool) {
	obs, ok := t.nodes[name]
	if !ok {
		return NodeObservation{}, false
	}
	return copyObservation(obs), true
}

// Nodes returns a copy of every observation
func (t *ReadinessTracker) Nodes() map[string]NodeObservation {
	out := make(map[string]NodeObservation, len(t.nodes))
	for name, obs := range t.nodes {
		out[name] = copyObservation(obs)
	}
	return out
}

// ReadyCount returns the number of nodes with a ready timestamp
func (t *ReadinessTracker) ReadyCount() int {
	return t.ready
}

// Finalize computes time to ready for every node that became ready, and
// min/max/mean over the nodes that were not part of the initial snapshot.
// Stats are all zero when no new node became ready.
func (t *ReadinessTracker) Finalize() (map[string]int, AggregateStats) {
	durations := make(map[string]int)
	var stats AggregateStats
	sum := 0

	for name, obs := range t.nodes {
		d, ok := obs.TimeToReady()
		if !ok {
			continue
		}
		durations[name] = d

		if obs.Initial {
			continue
		}

		if stats.Count == 0 || d < stats.Min {
			stats.Min = d
		}
		if stats.Count == 0 || d > stats.Max {
			stats.Max = d
		}
		sum += d
		stats.Count++
	}

	if stats.Count > 0 {
		stats.Mean = float64(sum) / float64(stats.Count)
	}

	return durations, stats
}

func copyObservation(obs *NodeObservation) NodeObservation {
	out := NodeObservation{Name: obs.Name, Initial: obs.Initial}
	if obs.FirstSeenAt != nil {
		out.FirstSeenAt = ptr.To(*obs.FirstSeenAt)
	}
	if obs.ReadyAt != nil {
		out.ReadyAt = ptr.To(*obs.ReadyAt)
	}
	return out
}
