package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-logr/logr"

	telemetryv1alpha1 "github.com/wesleyemery/k8s-scale-telemetry/api/v1alpha1"
	"github.com/wesleyemery/k8s-scale-telemetry/pkg/gateway"
	"github.com/wesleyemery/k8s-scale-telemetry/pkg/report"
	"github.com/wesleyemery/k8s-scale-telemetry/pkg/telemetry"
)

func main() {
	fmt.Println("🚀 Testing Kubernetes Scale Telemetry")
	fmt.Println("=====================================")

	ctx := context.Background()

	// 1. Simulate a deployment scaling to 1000 replicas across new nodes
	fmt.Println("\n📊 Simulating scale-out to 1000 replicas...")
	sampler := telemetry.NewSampler(
		gateway.NewSimulatedScaleOut(1000, 5, 3, 6),
		"scale-test", "scale-test",
		logr.Discard(),
	)

	// 2. Sample once per second
	result, err := sampler.Run(ctx, 1000, 30*time.Second, time.Second)
	if err != nil {
		panic(err)
	}

	fmt.Printf("✅ Collected %d samples, reached target: %t\n", len(result.Series), result.ReachedTarget)

	// 3. Display the time series
	fmt.Println("\n📋 Time Series:")
	fmt.Println("============================")
	if err := report.WriteTimeSeriesCSV(os.Stdout, result.Series); err != nil {
		panic(err)
	}

	// 4. Display the run summary
	fmt.Println("\n🔍 Node Readiness:")
	fmt.Println("============================")
	if err := report.WriteSummary(os.Stdout, report.Summarize(result), telemetryv1alpha1.SummaryFormatTable); err != nil {
		panic(err)
	}

	fmt.Printf("\n⏱  New nodes: %d ready, min %ds, max %ds, mean %.2fs\n",
		result.Stats.Count, result.Stats.Min, result.Stats.Max, result.Stats.Mean)
}
