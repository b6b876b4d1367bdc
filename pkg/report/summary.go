package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/yaml"

	"github.com/wesleyemery/k8s-scale-telemetry/api/v1alpha1"
	"github.com/wesleyemery/k8s-scale-telemetry/pkg/telemetry"
)

// Summarize converts a run result into a ScaleTest status
func Summarize(result *telemetry.RunResult) v1alpha1.ScaleTestStatus {
	status := v1alpha1.ScaleTestStatus{
		Phase:          v1alpha1.PhaseTimedOut,
		ReachedTarget:  result.ReachedTarget,
		TargetReplicas: result.TargetReplicas,
		Samples:        int32(len(result.Series)),
		NewNodes: v1alpha1.NodeReadinessSummary{
			Count:       int32(result.Stats.Count),
			MinSeconds:  int32(result.Stats.Min),
			MaxSeconds:  int32(result.Stats.Max),
			MeanSeconds: strconv.FormatFloat(result.Stats.Mean, 'f', 2, 64),
		},
	}

	if !result.StartedAt.IsZero() {
		status.StartTime = ptr.To(metav1.NewTime(result.StartedAt))
	}
	if !result.FinishedAt.IsZero() {
		status.CompletionTime = ptr.To(metav1.NewTime(result.FinishedAt))
	}

	last, ok := result.LastSample()
	if ok {
		status.AvailableReplicas = last.AvailableReplicas
		status.ElapsedSeconds = int32(last.ElapsedSeconds)
		status.TotalNodes = int32(last.TotalNodes)
		status.ReadyNodes = int32(last.ReadyNodes)
	}

	switch {
	case result.ReachedTarget:
		status.Phase = v1alpha1.PhaseCompleted
		status.Message = fmt.Sprintf("Deployment reached %d/%d available replicas after %ds",
			status.AvailableReplicas, result.TargetReplicas, status.ElapsedSeconds)
	case result.Interrupted:
		status.Phase = v1alpha1.PhaseError
		status.Message = fmt.Sprintf("Sampling interrupted with %d/%d available replicas after %ds",
			status.AvailableReplicas, result.TargetReplicas, status.ElapsedSeconds)
	default:
		status.Message = fmt.Sprintf("Timed out with %d/%d available replicas after %ds",
			status.AvailableReplicas, result.TargetReplicas, status.ElapsedSeconds)
	}

	names := make([]string, 0, len(result.Nodes))
	for name := range result.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		obs := result.Nodes[name]
		node := v1alpha1.NodeReadiness{
			Name:             name,
			Initial:          obs.Initial,
			FirstSeenSeconds: toInt32Ptr(obs.FirstSeenAt),
			ReadyAtSeconds:   toInt32Ptr(obs.ReadyAt),
		}
		if d, ok := obs.TimeToReady(); ok {
			node.TimeToReadySeconds = ptr.To(int32(d))
		}
		status.NodeReadiness = append(status.NodeReadiness, node)
	}

	return status
}

// WriteSummary writes status to w in the requested format
func WriteSummary(w io.Writer, status v1alpha1.ScaleTestStatus, format v1alpha1.SummaryFormat) error {
	switch format {
	case v1alpha1.SummaryFormatYAML:
		data, err := yaml.Marshal(status)
		if err != nil {
			return fmt.Errorf("failed to marshal summary: %w", err)
		}
		_, err = w.Write(data)
		return err
	case v1alpha1.SummaryFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			return fmt.Errorf("failed to marshal summary: %w", err)
		}
		return nil
	case v1alpha1.SummaryFormatTable, "":
		return RenderTable(w, status)
	default:
		return fmt.Errorf("unsupported summary format %q", format)
	}
}

func toInt32Ptr(v *int) *int32 {
	if v == nil {
		return nil
	}
	return ptr.To(int32(*v))
}
