package gateway

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

var errNoSeries = errors.New("no matching series")

// PrometheusGateway reads deployment and node state from kube-state-metrics
// series stored in Prometheus
type PrometheusGateway struct {
	client   api.Client
	queryAPI v1.API
}

// NewPrometheusGateway creates a new Prometheus-backed gateway
func NewPrometheusGateway(prometheusURL string, roundTripper http.RoundTripper) (*PrometheusGateway, error) {
	client, err := api.NewClient(api.Config{
		Address:      prometheusURL,
		RoundTripper: roundTripper,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &PrometheusGateway{
		client:   client,
		queryAPI: v1.NewAPI(client),
	}, nil
}

// GetDeploymentStatus retrieves the available replica count of a deployment
func (p *PrometheusGateway) GetDeploymentStatus(ctx context.Context, namespace, name string) (DeploymentStatus, error) {
	op := fmt.Sprintf("get deployment %s/%s", namespace, name)

	query := fmt.Sprintf(
		`kube_deployment_status_replicas_available{namespace=%q,deployment=%q}`,
		namespace, name,
	)

	vector, err := p.queryVector(ctx, query)
	if err != nil {
		return DeploymentStatus{}, unavailable(op, err)
	}

	// kube-state-metrics drops the series once the deployment is deleted
	if len(vector) == 0 {
		return DeploymentStatus{}, unavailable(op, errNoSeries)
	}

	status := DeploymentStatus{Namespace: namespace, Name: name}

	// A NaN sample means the value was not reported
	value := float64(vector[0].Value)
	if !math.IsNaN(value) {
		available := int32(value)
		status.AvailableReplicas = &available
	}

	return status, nil
}

// ListNodes lists all nodes known to kube-state-metrics with their readiness
func (p *PrometheusGateway) ListNodes(ctx context.Context) ([]NodeStatus, error) {
	// One series per node; the value is 1 while Ready=True and 0 otherwise
	query := `kube_node_status_condition{condition="Ready",status="true"}`

	vector, err := p.queryVector(ctx, query)
	if err != nil {
		return nil, unavailable("list nodes", err)
	}

	return p.convertVectorToNodes(vector), nil
}

func (p *PrometheusGateway) queryVector(ctx context.Context, query string) (model.Vector, error) {
	result, _, err := p.queryAPI.Query(ctx, query, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", query, err)
	}

	vector, ok := result.(model.Vector)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %s for %q", result.Type(), query)
	}

	return vector, nil
}

// convertVectorToNodes converts Ready condition samples to node statuses
func (p *PrometheusGateway) convertVectorToNodes(vector model.Vector) []NodeStatus {
	seen := make(map[string]bool, len(vector))
	nodes := make([]NodeStatus, 0, len(vector))

	for _, sample := range vector {
		name := string(sample.Metric["node"])
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		nodes = append(nodes, NodeStatus{
			Name:  name,
			Ready: sample.Value == 1,
		})
	}

	return nodes
}
