package gateway

import (
	"context"
	"fmt"
	"sync"
)

// MockGateway replays scripted cluster state for testing.
//
// Each call consumes the next entry of its own script; once a script is
// exhausted its last entry is repeated. The first entry of Nodes answers the
// node snapshot a sampler takes before its first tick.
type MockGateway struct {
	Replicas []*int32
	Nodes    [][]NodeStatus

	// DeploymentErrors and NodeErrors fail the call with the given index
	DeploymentErrors map[int]error
	NodeErrors       map[int]error

	mu              sync.Mutex
	deploymentCalls int
	nodeCalls       int
}

// NewMockGateway creates a mock gateway from replica counts and node frames
func NewMockGateway(replicas []int32, nodes ...[]NodeStatus) *MockGateway {
	m := &MockGateway{Nodes: nodes}
	for i := range replicas {
		count := replicas[i]
		m.Replicas = append(m.Replicas, &count)
	}
	return m
}

// NewSimulatedScaleOut generates a synthetic scale-out.
//
// Replicas ramp linearly to target over steps ticks. Each added node appears
// on a later tick and becomes ready one tick after it appears.
func NewSimulatedScaleOut(target int32, steps, initialNodes, addedNodes int) *MockGateway {
	if steps < 1 {
		steps = 1
	}

	// The pre-run snapshot is one frame ahead of tick 0
	frames := steps + 2
	nodeFrames := make([][]NodeStatus, frames)
	for frame := 0; frame < frames; frame++ {
		var nodes []NodeStatus
		for i := 0; i < initialNodes; i++ {
			nodes = append(nodes, NodeStatus{Name: fmt.Sprintf("node-initial-%d", i), Ready: true})
		}

		for i := 0; i < addedNodes; i++ {
			// Spread arrivals over the ramp so the last one is ready on the final tick
			appearsAt := 1 + (i*steps)/addedNodes
			if frame < appearsAt {
				continue
			}
			nodes = append(nodes, NodeStatus{
				Name:  fmt.Sprintf("node-scaled-%d", i),
				Ready: frame > appearsAt,
			})
		}
		nodeFrames[frame] = nodes
	}

	var replicas []int32
	for tick := 0; tick <= steps; tick++ {
		replicas = append(replicas, int32(int64(target)*int64(tick)/int64(steps)))
	}

	return NewMockGateway(replicas, nodeFrames...)
}

// GetDeploymentStatus returns the next scripted deployment status
func (m *MockGateway) GetDeploymentStatus(_ context.Context, namespace, name string) (DeploymentStatus, error) {
	m.mu.Lock()
	call := m.deploymentCalls
	m.deploymentCalls++
	m.mu.Unlock()

	if err, ok := m.DeploymentErrors[call]; ok {
		return DeploymentStatus{}, unavailable(fmt.Sprintf("get deployment %s/%s", namespace, name), err)
	}

	status := DeploymentStatus{Namespace: namespace, Name: name}
	if len(m.Replicas) > 0 {
		status.AvailableReplicas = m.Replicas[min(call, len(m.Replicas)-1)]
	}

	return status, nil
}

// ListNodes returns the next scripted node frame
func (m *MockGateway) ListNodes(_ context.Context) ([]NodeStatus, error) {
	m.mu.Lock()
	call := m.nodeCalls
	m.nodeCalls++
	m.mu.Unlock()

	if err, ok := m.NodeErrors[call]; ok {
		return nil, unavailable("list nodes", err)
	}

	if len(m.Nodes) == 0 {
		return nil, nil
	}

	frame := m.Nodes[min(call, len(m.Nodes)-1)]
	nodes := make([]NodeStatus, len(frame))
	copy(nodes, frame)

	return nodes, nil
}

// Calls reports how many deployment and node reads have been served
func (m *MockGateway) Calls() (deployment, nodes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deploymentCalls, m.nodeCalls
}
