/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ScaleTestSpec defines a single scale-out run.
type ScaleTestSpec struct {
	// Target identifies the deployment to observe
	Target TargetSpec `json:"target"`

	// TargetReplicas is the available replica count that ends the run successfully
	TargetReplicas int32 `json:"targetReplicas"`

	// Timeout bounds the sampling loop
	// +kubebuilder:default="240s"
	Timeout metav1.Duration `json:"timeout,omitempty"`

	// Interval is the wait between ticks. Must be at least one second.
	// +kubebuilder:default="10s"
	Interval metav1.Duration `json:"interval,omitempty"`

	// ScaleBeforeTracking patches the deployment to TargetReplicas before sampling
	// +kubebuilder:default=false
	ScaleBeforeTracking bool `json:"scaleBeforeTracking,omitempty"`

	// RestoreReplicas scales the deployment back to its previous replica
	// count once sampling ends. Only valid with ScaleBeforeTracking.
	RestoreReplicas bool `json:"restoreReplicas,omitempty"`

	// Gateway defines where cluster state is read from
	Gateway GatewaySpec `json:"gateway,omitempty"`

	// Output defines where the run is reported
	Output OutputSpec `json:"output,omitempty"`
}

// TargetSpec identifies the deployment under test.
type TargetSpec struct {
	// +kubebuilder:default="default"
	Namespace string `json:"namespace,omitempty"`

	DeploymentName string `json:"deploymentName"`
}

// GatewaySpec defines the source of cluster state
type GatewaySpec struct {
	// +kubebuilder:default="kubernetes"
	Type GatewayType `json:"type,omitempty"`

	// PrometheusConfig is required when Type is prometheus
	PrometheusConfig *PrometheusConfig `json:"prometheusConfig,omitempty"`

	// Simulation shapes the synthetic scale-out served when Type is mock
	Simulation *SimulationConfig `json:"simulation,omitempty"`
}

// GatewayType defines the type of cluster state source
// +kubebuilder:validation:Enum=kubernetes;prometheus;mock
type GatewayType string

const (
	GatewayKubernetes GatewayType = "kubernetes"
	GatewayPrometheus GatewayType = "prometheus"
	GatewayMock       GatewayType = "mock"
)

// PrometheusConfig defines Prometheus connection details
type PrometheusConfig struct {
	// URL is the Prometheus server URL
	URL string `json:"url,omitempty"`

	// InsecureSkipTLSVerify skips TLS verification
	InsecureSkipTLSVerify bool `json:"insecureSkipTLSVerify,omitempty"`
}

// SimulationConfig describes a synthetic scale-out
type SimulationConfig struct {
	// Steps is the number of ticks the replica count takes to reach the target
	// +kubebuilder:default=6
	Steps int `json:"steps,omitempty"`

	// InitialNodes exist before the run starts
	InitialNodes int `json:"initialNodes,omitempty"`

	// AddedNodes join the cluster during the run
	AddedNodes int `json:"addedNodes,omitempty"`
}

// OutputSpec defines how the run is reported
type OutputSpec struct {
	// Directory receives the CSV files. No CSV is written when empty.
	Directory string `json:"directory,omitempty"`

	// SummaryFormat is the format of the summary printed to stdout
	// +kubebuilder:default="table"
	SummaryFormat SummaryFormat `json:"summaryFormat,omitempty"`

	// MetricsTextfile receives the run metrics in Prometheus text format
	MetricsTextfile string `json:"metricsTextfile,omitempty"`
}

// SummaryFormat defines the format of the run summary
// +kubebuilder:validation:Enum=yaml;json;table
type SummaryFormat string

const (
	SummaryFormatYAML  SummaryFormat = "yaml"
	SummaryFormatJSON  SummaryFormat = "json"
	SummaryFormatTable SummaryFormat = "table"
)

// ScaleTestStatus defines the observed outcome of a run
type ScaleTestStatus struct {
	// Phase indicates how the run ended
	Phase ScaleTestPhase `json:"phase,omitempty"`

	// Message provides a human-readable status message
	Message string `json:"message,omitempty"`

	StartTime      *metav1.Time `json:"startTime,omitempty"`
	CompletionTime *metav1.Time `json:"completionTime,omitempty"`

	// ReachedTarget is true if available replicas reached the target before the timeout
	ReachedTarget bool `json:"reachedTarget"`

	TargetReplicas    int32 `json:"targetReplicas"`
	AvailableReplicas int32 `json:"availableReplicas"`

	// Samples is the number of ticks taken
	Samples int32 `json:"samples"`

	// ElapsedSeconds is the elapsed time of the last tick
	ElapsedSeconds int32 `json:"elapsedSeconds"`

	TotalNodes int32 `json:"totalNodes"`
	ReadyNodes int32 `json:"readyNodes"`

	// NewNodes summarizes readiness of nodes added during the run
	NewNodes NodeReadinessSummary `json:"newNodes"`

	// NodeReadiness lists every node observed during the run
	NodeReadiness []NodeReadiness `json:"nodeReadiness,omitempty"`
}

// ScaleTestPhase defines the outcome of a run
// +kubebuilder:validation:Enum=Pending;Completed;TimedOut;Error
type ScaleTestPhase string

const (
	PhasePending   ScaleTestPhase = "Pending"
	PhaseCompleted ScaleTestPhase = "Completed"
	PhaseTimedOut  ScaleTestPhase = "TimedOut"
	PhaseError     ScaleTestPhase = "Error"
)

// NodeReadinessSummary aggregates time to ready over newly added nodes
type NodeReadinessSummary struct {
	Count      int32 `json:"count"`
	MinSeconds int32 `json:"minSeconds"`
	MaxSeconds int32 `json:"maxSeconds"`

	// MeanSeconds is formatted with two decimals
	MeanSeconds string `json:"meanSeconds"`
}

// NodeReadiness reports the observed timestamps of a node
type NodeReadiness struct {
	Name string `json:"name"`

	// Initial is true when the node existed before the run started
	Initial bool `json:"initial,omitempty"`

	FirstSeenSeconds   *int32 `json:"firstSeenSeconds,omitempty"`
	ReadyAtSeconds     *int32 `json:"readyAtSeconds,omitempty"`
	TimeToReadySeconds *int32 `json:"timeToReadySeconds,omitempty"`
}

// ScaleTest is the Schema for scale test documents.
type ScaleTest struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   ScaleTestSpec   `json:"spec,omitempty"`
	Status ScaleTestStatus `json:"status,omitempty"`
}
