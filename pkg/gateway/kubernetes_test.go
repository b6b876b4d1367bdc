package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"
)

func newNode(name string, conditions ...corev1.NodeCondition) *corev1.Node {
	return &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Status:     corev1.NodeStatus{Conditions: conditions},
	}
}

func TestKubernetesGateway_GetDeploymentStatus(t *testing.T) {
	deployment := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "scale-test", Namespace: "scale-test"},
		Status:     appsv1.DeploymentStatus{AvailableReplicas: 42},
	}
	c := fake.NewClientBuilder().WithObjects(deployment).Build()

	gw := NewKubernetesGateway(c)
	status, err := gw.GetDeploymentStatus(context.Background(), "scale-test", "scale-test")

	require.NoError(t, err)
	require.NotNil(t, status.AvailableReplicas)
	assert.Equal(t, int32(42), *status.AvailableReplicas)
	assert.Equal(t, "scale-test", status.Name)
	assert.Equal(t, "scale-test", status.Namespace)
}

func TestKubernetesGateway_GetDeploymentStatus_NoAvailableReplicas(t *testing.T) {
	deployment := &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: "fresh", Namespace: "default"},
	}
	c := fake.NewClientBuilder().WithObjects(deployment).Build()

	status, err := NewKubernetesGateway(c).GetDeploymentStatus(context.Background(), "default", "fresh")

	require.NoError(t, err)
	require.NotNil(t, status.AvailableReplicas)
	assert.Equal(t, int32(0), *status.AvailableReplicas)
}

func TestKubernetesGateway_GetDeploymentStatus_NotFound(t *testing.T) {
	c := fake.NewClientBuilder().Build()

	_, err := NewKubernetesGateway(c).GetDeploymentStatus(context.Background(), "default", "missing")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Contains(t, err.Error(), "default/missing")
}

func TestKubernetesGateway_ListNodes(t *testing.T) {
	c := fake.NewClientBuilder().WithObjects(
		newNode("node-ready", corev1.NodeCondition{Type: corev1.NodeReady, Status: corev1.ConditionTrue}),
		newNode("node-not-ready", corev1.NodeCondition{Type: corev1.NodeReady, Status: corev1.ConditionFalse}),
		newNode("node-unknown", corev1.NodeCondition{Type: corev1.NodeReady, Status: corev1.ConditionUnknown}),
		newNode("node-pressure", corev1.NodeCondition{Type: corev1.NodeMemoryPressure, Status: corev1.ConditionTrue}),
		newNode("node-no-conditions"),
	).Build()

	nodes, err := NewKubernetesGateway(c).ListNodes(context.Background())
	require.NoError(t, err)
	require.Len(t, nodes, 5)

	readiness := make(map[string]bool)
	for _, node := range nodes {
		readiness[node.Name] = node.Ready
	}

	assert.True(t, readiness["node-ready"])
	assert.False(t, readiness["node-not-ready"])
	assert.False(t, readiness["node-unknown"])
	assert.False(t, readiness["node-pressure"])
	assert.False(t, readiness["node-no-conditions"])
}

func TestKubernetesGateway_ListNodes_Error(t *testing.T) {
	listErr := errors.New("connection refused")
	c := fake.NewClientBuilder().WithInterceptorFuncs(interceptor.Funcs{
		List: func(ctx context.Context, client client.WithWatch, list client.ObjectList, opts ...client.ListOption) error {
			return listErr
		},
	}).Build()

	nodes, err := NewKubernetesGateway(c).ListNodes(context.Background())

	assert.Nil(t, nodes)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.True(t, errors.Is(err, listErr))
}
