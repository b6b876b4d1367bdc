package gateway

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// KubernetesGateway reads deployment and node state from the Kubernetes API
type KubernetesGateway struct {
	client client.Reader
}

// NewKubernetesGateway creates a gateway backed by a controller-runtime reader
func NewKubernetesGateway(c client.Reader) *KubernetesGateway {
	return &KubernetesGateway{client: c}
}

// GetDeploymentStatus retrieves the available replica count of a deployment
func (k *KubernetesGateway) GetDeploymentStatus(ctx context.Context, namespace, name string) (DeploymentStatus, error) {
	var deployment appsv1.Deployment
	if err := k.client.Get(ctx, types.NamespacedName{Name: name, Namespace: namespace}, &deployment); err != nil {
		return DeploymentStatus{}, unavailable(fmt.Sprintf("get deployment %s/%s", namespace, name), err)
	}

	// The API omits availableReplicas while it is zero, which decodes to 0 here
	available := deployment.Status.AvailableReplicas

	return DeploymentStatus{
		Namespace:         namespace,
		Name:              name,
		AvailableReplicas: &available,
	}, nil
}

// ListNodes lists all cluster nodes with their readiness
func (k *KubernetesGateway) ListNodes(ctx context.Context) ([]NodeStatus, error) {
	var nodeList corev1.NodeList
	if err := k.client.List(ctx, &nodeList); err != nil {
		return nil, unavailable("list nodes", err)
	}

	nodes := make([]NodeStatus, 0, len(nodeList.Items))
	for i := range nodeList.Items {
		nodes = append(nodes, NodeStatus{
			Name:  nodeList.Items[i].Name,
			Ready: isNodeReady(&nodeList.Items[i]),
		})
	}

	return nodes, nil
}

// isNodeReady returns true if the node has condition Ready=True.
// Nodes that report no conditions yet are treated as not ready.
func isNodeReady(node *corev1.Node) bool {
	for _, cond := range node.Status.Conditions {
		if cond.Type == corev1.NodeReady {
			return cond.Status == corev1.ConditionTrue
		}
	}

	return false
}
