package gateway

import (
	"errors"
	"fmt"
)

// ErrUnavailable is returned when cluster state cannot be read
var ErrUnavailable = errors.New("gateway unavailable")

// DeploymentStatus represents the observed status of a deployment
type DeploymentStatus struct {
	Namespace string
	Name      string
	// AvailableReplicas is nil when the orchestrator has not reported a count yet
	AvailableReplicas *int32
}

// NodeStatus represents a node and the state of its Ready condition
type NodeStatus struct {
	Name  string
	Ready bool
}

// unavailable wraps a failed read so callers can match it with errors.Is
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
