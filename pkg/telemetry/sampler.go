package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"
	"k8s.io/utils/ptr"

	"github.com/wesleyemery/k8s-scale-telemetry/pkg/gateway"
)

// Sampler polls a deployment and the cluster's nodes at a fixed interval
// until the deployment reaches a target replica count or a timeout expires
type Sampler struct {
	Gateway    Gateway
	Namespace  string
	Deployment string

	// Clock defaults to the real clock
	Clock    clock.Clock
	Logger   logr.Logger
	Observer Observer
}

// NewSampler creates a sampler for a single deployment
func NewSampler(gw Gateway, namespace, deployment string, logger logr.Logger) *Sampler {
	return &Sampler{
		Gateway:    gw,
		Namespace:  namespace,
		Deployment: deployment,
		Clock:      clock.RealClock{},
		Logger:     logger,
	}
}

// Run samples until available replicas reach target or timeout elapses.
//
// Reaching the timeout is not an error; the returned result has
// ReachedTarget set to false. A gateway failure aborts the run and returns
// no result. If ctx is cancelled while waiting between ticks, the partial
// result is returned together with ctx.Err().
//
// The timeout is checked before each tick and in-flight queries are not
// interrupted, so a run can exceed timeout by the latency of one tick.
func (s *Sampler) Run(ctx context.Context, target int32, timeout, interval time.Duration) (*RunResult, error) {
	if err := s.validate(target, timeout, interval); err != nil {
		return nil, err
	}

	clk := s.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	logger := s.Logger.WithValues("namespace", s.Namespace, "deployment", s.Deployment)

	start := clk.Now()

	snapshot, err := s.Gateway.ListNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to take initial node snapshot: %w", err)
	}

	initial := make([]string, 0, len(snapshot))
	for _, node := range snapshot {
		initial = append(initial, node.Name)
	}
	tracker := NewReadinessTracker(initial)

	result := &RunResult{
		Namespace:      s.Namespace,
		Deployment:     s.Deployment,
		TargetReplicas: target,
		StartedAt:      start,
	}

	logger.Info("Starting scaling telemetry",
		"target", target,
		"timeout", timeout,
		"interval", interval,
		"initialNodes", len(initial))

	var available int32
	for clk.Since(start) < timeout {
		elapsed := int(clk.Since(start) / time.Second)

		status, nodes, err := s.poll(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to sample cluster state at %ds: %w", elapsed, err)
		}

		available = ptr.Deref(status.AvailableReplicas, 0)

		for _, node := range nodes {
			if tracker.Observe(node.Name, node.Ready, elapsed) && s.Observer != nil {
				obs, _ := tracker.Node(node.Name)
				s.Observer.OnNodeReady(obs)
			}
		}

		sample := Sample{
			ElapsedSeconds:    elapsed,
			AvailableReplicas: available,
			TotalNodes:        len(nodes),
			ReadyNodes:        tracker.ReadyCount(),
		}
		result.Series = append(result.Series, sample)
		if s.Observer != nil {
			s.Observer.OnSample(sample)
		}

		logger.Info("Sampled cluster state",
			"elapsed", elapsed,
			"available", available,
			"target", target,
			"nodes", sample.TotalNodes,
			"ready", sample.ReadyNodes)

		if available >= target {
			result.ReachedTarget = true
			logger.Info("Deployment scaled successfully", "elapsed", elapsed, "available", available)
			break
		}

		if err := wait(ctx, clk, interval); err != nil {
			result.Interrupted = true
			logger.Info("Sampling interrupted", "elapsed", elapsed, "available", available)
			s.finalize(result, tracker, clk)
			return result, err
		}
	}

	if !result.ReachedTarget {
		logger.Info("Timeout reached before deployment scaled",
			"timeout", timeout,
			"available", available,
			"target", target)
	}

	s.finalize(result, tracker, clk)
	return result, nil
}

func (s *Sampler) validate(target int32, timeout, interval time.Duration) error {
	switch {
	case s.Gateway == nil:
		return fmt.Errorf("%w: gateway is required", ErrInvalidRunParameters)
	case target <= 0:
		return fmt.Errorf("%w: target replicas must be positive, got %d", ErrInvalidRunParameters, target)
	case timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidRunParameters, timeout)
	case interval < time.Second:
		// Elapsed time has one-second resolution
		return fmt.Errorf("%w: interval must be at least 1s, got %s", ErrInvalidRunParameters, interval)
	case interval > timeout:
		return fmt.Errorf("%w: interval %s exceeds timeout %s", ErrInvalidRunParameters, interval, timeout)
	}
	return nil
}

// poll queries deployment status and nodes for a single tick
func (s *Sampler) poll(ctx context.Context) (gateway.DeploymentStatus, []gateway.NodeStatus, error) {
	var (
		status gateway.DeploymentStatus
		nodes  []gateway.NodeStatus
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		status, err = s.Gateway.GetDeploymentStatus(gctx, s.Namespace, s.Deployment)
		return err
	})
	g.Go(func() error {
		var err error
		nodes, err = s.Gateway.ListNodes(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return gateway.DeploymentStatus{}, nil, err
	}

	return status, nodes, nil
}

func (s *Sampler) finalize(result *RunResult, tracker *ReadinessTracker, clk clock.PassiveClock) {
	result.Nodes = tracker.Nodes()
	result.TimeToReady, result.Stats = tracker.Finalize()
	result.FinishedAt = clk.Now()
}

func wait(ctx context.Context, clk clock.Clock, interval time.Duration) error {
	timer := clk.NewTimer(interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C():
		return nil
	}
}
