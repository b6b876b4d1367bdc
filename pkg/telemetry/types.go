package telemetry

import "time"

// Sample is a single row of the telemetry series
type Sample struct {
	ElapsedSeconds    int   `json:"elapsedSeconds"`
	AvailableReplicas int32 `json:"availableReplicas"`
	TotalNodes        int   `json:"totalNodes"`
	ReadyNodes        int   `json:"readyNodes"`
}

// NodeObservation holds the first-seen and ready timestamps of a node,
// in elapsed seconds since the run started
type NodeObservation struct {
	Name        string `json:"name"`
	FirstSeenAt *int   `json:"firstSeenAt,omitempty"`
	ReadyAt     *int   `json:"readyAt,omitempty"`

	// Initial is true when the node existed before sampling started
	Initial bool `json:"initial"`
}

// TimeToReady returns the seconds between first sighting and readiness.
// The second value is false if the node never became ready.
func (n NodeObservation) TimeToReady() (int, bool) {
	if n.FirstSeenAt == nil || n.ReadyAt == nil {
		return 0, false
	}
	return *n.ReadyAt - *n.FirstSeenAt, true
}

// AggregateStats summarizes time to ready over newly added nodes
type AggregateStats struct {
	Count int     `json:"count"`
	Min   int     `json:"min"`
	Max   int     `json:"max"`
	Mean  float64 `json:"mean"`
}

// RunResult is the frozen outcome of a sampling run
type RunResult struct {
	Namespace      string `json:"namespace"`
	Deployment     string `json:"deployment"`
	TargetReplicas int32  `json:"targetReplicas"`

	Series []Sample                   `json:"series"`
	Nodes  map[string]NodeObservation `json:"nodes"`

	// TimeToReady holds only nodes that have both timestamps
	TimeToReady map[string]int `json:"timeToReady"`
	Stats       AggregateStats `json:"stats"`

	ReachedTarget bool `json:"reachedTarget"`

	// Interrupted is set when the run was cancelled before the target or timeout
	Interrupted bool      `json:"interrupted,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
}

// LastSample returns the final sample of the series
func (r *RunResult) LastSample() (Sample, bool) {
	if r == nil || len(r.Series) == 0 {
		return Sample{}, false
	}
	return r.Series[len(r.Series)-1], true
}
