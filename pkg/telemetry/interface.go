package telemetry

import (
	"context"

	"github.com/wesleyemery/k8s-scale-telemetry/pkg/gateway"
)

// Gateway defines the read-only view of cluster state a sampler needs
type Gateway interface {
	GetDeploymentStatus(ctx context.Context, namespace, name string) (gateway.DeploymentStatus, error)
	ListNodes(ctx context.Context) ([]gateway.NodeStatus, error)
}

// Observer receives telemetry as it is produced
type Observer interface {
	OnSample(sample Sample)
	OnNodeReady(node NodeObservation)
}
