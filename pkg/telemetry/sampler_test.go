package telemetry_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/wesleyemery/k8s-scale-telemetry/pkg/gateway"
	"github.com/wesleyemery/k8s-scale-telemetry/pkg/telemetry"
)

// driveClock advances fc by step whenever something is waiting on it
func driveClock(ctx context.Context, fc *clocktesting.FakeClock, step time.Duration) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if fc.HasWaiters() {
				fc.Step(step)
			}
			time.Sleep(time.Millisecond)
		}
	}()
}

type recordingObserver struct {
	mu       sync.Mutex
	samples  []telemetry.Sample
	ready    []telemetry.NodeObservation
	onSample func(telemetry.Sample)
}

func (r *recordingObserver) OnSample(sample telemetry.Sample) {
	r.mu.Lock()
	r.samples = append(r.samples, sample)
	r.mu.Unlock()
	if r.onSample != nil {
		r.onSample(sample)
	}
}

func (r *recordingObserver) OnNodeReady(node telemetry.NodeObservation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready = append(r.ready, node)
}

// slowGateway advances the fake clock on every deployment read
type slowGateway struct {
	*gateway.MockGateway
	clock   *clocktesting.FakeClock
	latency time.Duration
}

func (s *slowGateway) GetDeploymentStatus(ctx context.Context, namespace, name string) (gateway.DeploymentStatus, error) {
	s.clock.Step(s.latency)
	return s.MockGateway.GetDeploymentStatus(ctx, namespace, name)
}

func ready(names ...string) []gateway.NodeStatus {
	nodes := make([]gateway.NodeStatus, 0, len(names))
	for _, name := range names {
		nodes = append(nodes, gateway.NodeStatus{Name: name, Ready: true})
	}
	return nodes
}

func elapsedOf(series []telemetry.Sample) []int {
	out := make([]int, 0, len(series))
	for _, s := range series {
		out = append(out, s.ElapsedSeconds)
	}
	return out
}

var _ = Describe("Sampler", func() {
	var (
		ctx      context.Context
		cancel   context.CancelFunc
		fakeTime *clocktesting.FakeClock
		sampler  *telemetry.Sampler
		mock     *gateway.MockGateway
	)

	newSampler := func(gw telemetry.Gateway) *telemetry.Sampler {
		return &telemetry.Sampler{
			Gateway:    gw,
			Namespace:  "scale-test",
			Deployment: "scale-test",
			Clock:      fakeTime,
			Logger:     logr.Discard(),
		}
	}

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		DeferCleanup(func() { cancel() })
		fakeTime = clocktesting.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	})

	Context("when the deployment reaches its target", func() {
		BeforeEach(func() {
			mock = gateway.NewMockGateway([]int32{0, 1, 3}, ready("node-0"))
			sampler = newSampler(mock)
			driveClock(ctx, fakeTime, 10*time.Second)
		})

		It("stops on the tick that reaches the target", func() {
			result, err := sampler.Run(ctx, 3, 300*time.Second, 10*time.Second)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.ReachedTarget).To(BeTrue())
			Expect(elapsedOf(result.Series)).To(Equal([]int{0, 10, 20}))
			Expect(result.Series[2].AvailableReplicas).To(Equal(int32(3)))
			Expect(result.TargetReplicas).To(Equal(int32(3)))
			Expect(result.FinishedAt.Sub(result.StartedAt)).To(Equal(20 * time.Second))
		})

		It("treats a count equal to the target as success", func() {
			result, err := sampler.Run(ctx, 1, 300*time.Second, 10*time.Second)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.ReachedTarget).To(BeTrue())
			Expect(elapsedOf(result.Series)).To(Equal([]int{0, 10}))
		})
	})

	Context("when the timeout expires first", func() {
		BeforeEach(func() {
			mock = gateway.NewMockGateway([]int32{100, 300, 500}, ready("node-0"))
			sampler = newSampler(mock)
			driveClock(ctx, fakeTime, 10*time.Second)
		})

		It("returns the partial series without an error", func() {
			result, err := sampler.Run(ctx, 1000, 30*time.Second, 10*time.Second)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.ReachedTarget).To(BeFalse())
			Expect(result.Interrupted).To(BeFalse())
			Expect(elapsedOf(result.Series)).To(Equal([]int{0, 10, 20}))
			Expect(result.Series[2].AvailableReplicas).To(Equal(int32(500)))
		})

		It("runs exactly one tick when interval equals timeout", func() {
			result, err := sampler.Run(ctx, 1000, 10*time.Second, 10*time.Second)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.ReachedTarget).To(BeFalse())
			Expect(result.Interrupted).To(BeFalse())
			Expect(result.Series).To(HaveLen(1))
		})
	})

	Context("when gateway calls are slow", func() {
		It("checks the timeout against elapsed time rather than tick count", func() {
			mock = gateway.NewMockGateway([]int32{0}, ready("node-0"))
			sampler = newSampler(&slowGateway{MockGateway: mock, clock: fakeTime, latency: 3 * time.Second})
			driveClock(ctx, fakeTime, 5*time.Second)

			result, err := sampler.Run(ctx, 5, 10*time.Second, 5*time.Second)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.ReachedTarget).To(BeFalse())
			Expect(elapsedOf(result.Series)).To(Equal([]int{0, 8}))
		})
	})

	Context("when tracking node readiness", func() {
		It("records first sighting and readiness on separate ticks", func() {
			mock = gateway.NewMockGateway([]int32{0},
				nil,
				nil,
				[]gateway.NodeStatus{{Name: "node-a", Ready: false}},
				[]gateway.NodeStatus{{Name: "node-a", Ready: true}},
			)
			sampler = newSampler(mock)
			driveClock(ctx, fakeTime, 10*time.Second)

			result, err := sampler.Run(ctx, 5, 30*time.Second, 10*time.Second)
			Expect(err).NotTo(HaveOccurred())

			node := result.Nodes["node-a"]
			Expect(node.FirstSeenAt).To(HaveValue(Equal(10)))
			Expect(node.ReadyAt).To(HaveValue(Equal(20)))
			Expect(result.TimeToReady).To(Equal(map[string]int{"node-a": 10}))
			Expect(result.Stats).To(Equal(telemetry.AggregateStats{Count: 1, Min: 10, Max: 10, Mean: 10}))

			Expect(result.Series).To(Equal([]telemetry.Sample{
				{ElapsedSeconds: 0, AvailableReplicas: 0, TotalNodes: 0, ReadyNodes: 0},
				{ElapsedSeconds: 10, AvailableReplicas: 0, TotalNodes: 1, ReadyNodes: 0},
				{ElapsedSeconds: 20, AvailableReplicas: 0, TotalNodes: 1, ReadyNodes: 1},
			}))
		})

		It("excludes nodes from the initial snapshot from aggregate stats", func() {
			mock = gateway.NewMockGateway([]int32{0, 0, 2},
				ready("node-old"),
				[]gateway.NodeStatus{{Name: "node-old", Ready: true}, {Name: "node-new", Ready: false}},
				[]gateway.NodeStatus{{Name: "node-old", Ready: true}, {Name: "node-new", Ready: false}},
				[]gateway.NodeStatus{{Name: "node-old", Ready: true}, {Name: "node-new", Ready: true}},
			)
			sampler = newSampler(mock)
			driveClock(ctx, fakeTime, 10*time.Second)

			result, err := sampler.Run(ctx, 2, 60*time.Second, 10*time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.ReachedTarget).To(BeTrue())

			Expect(result.Nodes["node-old"].Initial).To(BeTrue())
			Expect(result.Nodes["node-new"].Initial).To(BeFalse())
			Expect(result.TimeToReady).To(Equal(map[string]int{"node-old": 0, "node-new": 20}))
			Expect(result.Stats).To(Equal(telemetry.AggregateStats{Count: 1, Min: 20, Max: 20, Mean: 20}))
		})

		It("reports zero stats when no new node becomes ready", func() {
			mock = gateway.NewMockGateway([]int32{0}, ready("node-old"))
			sampler = newSampler(mock)
			driveClock(ctx, fakeTime, 10*time.Second)

			result, err := sampler.Run(ctx, 1, 20*time.Second, 10*time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Stats).To(Equal(telemetry.AggregateStats{}))
		})

		It("keeps nodes that disappear in the raw observations", func() {
			mock = gateway.NewMockGateway([]int32{0},
				nil,
				ready("node-a"),
				nil,
			)
			sampler = newSampler(mock)
			driveClock(ctx, fakeTime, 10*time.Second)

			result, err := sampler.Run(ctx, 1, 20*time.Second, 10*time.Second)
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Nodes).To(HaveKey("node-a"))
			Expect(result.Series[1].TotalNodes).To(Equal(0))
			Expect(result.Series[1].ReadyNodes).To(Equal(1))
		})

		It("notifies the observer of every sample and newly ready node", func() {
			observer := &recordingObserver{}
			sampler = newSampler(gateway.NewSimulatedScaleOut(10, 4, 1, 2))
			sampler.Observer = observer
			driveClock(ctx, fakeTime, 10*time.Second)

			result, err := sampler.Run(ctx, 10, 300*time.Second, 10*time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.ReachedTarget).To(BeTrue())

			Expect(observer.samples).To(Equal(result.Series))
			Expect(observer.ready).To(HaveLen(3))
			for _, node := range observer.ready {
				Expect(node.ReadyAt).NotTo(BeNil())
			}
		})
	})

	Context("when the deployment reports no available replicas", func() {
		It("treats a missing count as zero", func() {
			mock = &gateway.MockGateway{Replicas: []*int32{nil}}
			sampler = newSampler(mock)
			driveClock(ctx, fakeTime, 10*time.Second)

			result, err := sampler.Run(ctx, 1, 10*time.Second, 10*time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Series).To(HaveLen(1))
			Expect(result.Series[0].AvailableReplicas).To(BeZero())
		})
	})

	Context("when the gateway fails", func() {
		It("aborts the run mid-way", func() {
			mock = gateway.NewMockGateway([]int32{0, 1, 2}, ready("node-0"))
			mock.DeploymentErrors = map[int]error{1: errors.New("connection refused")}
			sampler = newSampler(mock)
			driveClock(ctx, fakeTime, 10*time.Second)

			result, err := sampler.Run(ctx, 3, 300*time.Second, 10*time.Second)

			Expect(result).To(BeNil())
			Expect(err).To(MatchError(gateway.ErrUnavailable))
			Expect(err.Error()).To(ContainSubstring("10s"))
		})

		It("aborts when the initial snapshot fails", func() {
			mock = gateway.NewMockGateway([]int32{0}, ready("node-0"))
			mock.NodeErrors = map[int]error{0: errors.New("unauthorized")}
			sampler = newSampler(mock)

			result, err := sampler.Run(ctx, 3, 300*time.Second, 10*time.Second)

			Expect(result).To(BeNil())
			Expect(err).To(MatchError(gateway.ErrUnavailable))

			deploymentCalls, _ := mock.Calls()
			Expect(deploymentCalls).To(BeZero())
		})
	})

	Context("when the context is cancelled between ticks", func() {
		It("returns the partial result with the context error", func() {
			mock = gateway.NewMockGateway([]int32{0}, ready("node-0"))
			sampler = newSampler(mock)
			sampler.Observer = &recordingObserver{onSample: func(telemetry.Sample) { cancel() }}

			result, err := sampler.Run(ctx, 3, 300*time.Second, 10*time.Second)

			Expect(err).To(MatchError(context.Canceled))
			Expect(result).NotTo(BeNil())
			Expect(result.ReachedTarget).To(BeFalse())
			Expect(result.Interrupted).To(BeTrue())
			Expect(result.Series).To(HaveLen(1))
			Expect(result.Nodes).To(HaveKey("node-0"))
		})
	})

	DescribeTable("rejects invalid run parameters before calling the gateway",
		func(target int32, timeout, interval time.Duration) {
			mock = gateway.NewMockGateway([]int32{0}, ready("node-0"))
			sampler = newSampler(mock)

			result, err := sampler.Run(ctx, target, timeout, interval)

			Expect(result).To(BeNil())
			Expect(err).To(MatchError(telemetry.ErrInvalidRunParameters))

			deploymentCalls, nodeCalls := mock.Calls()
			Expect(deploymentCalls).To(BeZero())
			Expect(nodeCalls).To(BeZero())
		},
		Entry("zero target", int32(0), 30*time.Second, 10*time.Second),
		Entry("negative target", int32(-1), 30*time.Second, 10*time.Second),
		Entry("zero timeout", int32(3), time.Duration(0), 10*time.Second),
		Entry("sub-second interval", int32(3), 30*time.Second, 500*time.Millisecond),
		Entry("interval longer than timeout", int32(3), 30*time.Second, 60*time.Second),
	)

	It("produces strictly increasing elapsed times starting at zero", func() {
		sampler = newSampler(gateway.NewSimulatedScaleOut(50, 6, 2, 4))
		driveClock(ctx, fakeTime, 7*time.Second)

		result, err := sampler.Run(ctx, 50, 300*time.Second, 7*time.Second)
		Expect(err).NotTo(HaveOccurred())

		elapsed := elapsedOf(result.Series)
		Expect(elapsed[0]).To(BeZero())
		for i := 1; i < len(elapsed); i++ {
			Expect(elapsed[i]).To(BeNumerically(">", elapsed[i-1]))
		}
		for _, d := range result.TimeToReady {
			Expect(d).To(BeNumerically(">=", 0))
		}
	})
})
