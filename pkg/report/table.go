package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/wesleyemery/k8s-scale-telemetry/api/v1alpha1"
)

// RenderTable renders the run outcome followed by per-node readiness
func RenderTable(w io.Writer, status v1alpha1.ScaleTestStatus) error {
	overview := newTable(w)
	overview.Header("Field", "Value")
	rows := [][]any{
		{"Phase", string(status.Phase)},
		{"Replicas", fmt.Sprintf("%d/%d", status.AvailableReplicas, status.TargetReplicas)},
		{"Elapsed", fmt.Sprintf("%ds", status.ElapsedSeconds)},
		{"Samples", status.Samples},
		{"Nodes", fmt.Sprintf("%d (%d ready)", status.TotalNodes, status.ReadyNodes)},
		{"New nodes ready", status.NewNodes.Count},
		{"Time to ready min/max/mean", fmt.Sprintf("%ds / %ds / %ss",
			status.NewNodes.MinSeconds, status.NewNodes.MaxSeconds, status.NewNodes.MeanSeconds)},
	}
	for _, row := range rows {
		if err := overview.Append(row...); err != nil {
			return fmt.Errorf("failed to render summary: %w", err)
		}
	}
	if err := overview.Render(); err != nil {
		return fmt.Errorf("failed to render summary: %w", err)
	}

	if len(status.NodeReadiness) == 0 {
		return nil
	}

	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}

	nodes := newTable(w)
	nodes.Header("Node", "Initial", "First Seen (s)", "Ready At (s)", "Time To Ready (s)")
	for _, node := range status.NodeReadiness {
		err := nodes.Append(
			node.Name,
			strconv.FormatBool(node.Initial),
			formatSeconds(node.FirstSeenSeconds),
			formatSeconds(node.ReadyAtSeconds),
			formatSeconds(node.TimeToReadySeconds),
		)
		if err != nil {
			return fmt.Errorf("failed to render node readiness: %w", err)
		}
	}
	if err := nodes.Render(); err != nil {
		return fmt.Errorf("failed to render node readiness: %w", err)
	}

	return nil
}

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
	)
}

func formatSeconds(v *int32) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(int(*v))
}
