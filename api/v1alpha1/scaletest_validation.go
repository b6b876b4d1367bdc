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
	"fmt"
	"net/url"
	"os"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/apimachinery/pkg/util/validation/field"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/yaml"
)

var scaletestlog = logf.Log.WithName("scaletest-config")

const (
	DefaultNamespace       = "default"
	DefaultTimeout         = 240 * time.Second
	DefaultInterval        = 10 * time.Second
	DefaultSimulationSteps = 6
)

// LoadScaleTest reads a ScaleTest document from path and applies defaults.
// Unknown fields are rejected.
func LoadScaleTest(path string) (*ScaleTest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scale test %s: %w", path, err)
	}

	var st ScaleTest
	if err := yaml.UnmarshalStrict(data, &st); err != nil {
		return nil, fmt.Errorf("failed to parse scale test %s: %w", path, err)
	}

	st.Default()
	scaletestlog.V(1).Info("Loaded scale test", "path", path, "name", st.Name)

	return &st, nil
}

// NewScaleTest returns a defaulted ScaleTest for a deployment
func NewScaleTest(namespace, deployment string, targetReplicas int32) *ScaleTest {
	st := &ScaleTest{
		Spec: ScaleTestSpec{
			Target:         TargetSpec{Namespace: namespace, DeploymentName: deployment},
			TargetReplicas: targetReplicas,
		},
	}
	st.Default()
	return st
}

// Default fills unset fields with their defaults
func (r *ScaleTest) Default() {
	if r.APIVersion == "" {
		r.APIVersion = GroupVersion.String()
	}
	if r.Kind == "" {
		r.Kind = ScaleTestKind
	}

	if r.Spec.Target.Namespace == "" {
		r.Spec.Target.Namespace = DefaultNamespace
	}
	if r.Spec.Timeout.Duration == 0 {
		r.Spec.Timeout = metav1.Duration{Duration: DefaultTimeout}
	}
	if r.Spec.Interval.Duration == 0 {
		r.Spec.Interval = metav1.Duration{Duration: DefaultInterval}
	}

	if r.Spec.Gateway.Type == "" {
		r.Spec.Gateway.Type = GatewayKubernetes
	}
	if r.Spec.Gateway.Type == GatewayMock {
		if r.Spec.Gateway.Simulation == nil {
			r.Spec.Gateway.Simulation = &SimulationConfig{}
		}
		if r.Spec.Gateway.Simulation.Steps == 0 {
			r.Spec.Gateway.Simulation.Steps = DefaultSimulationSteps
		}
	}

	if r.Spec.Output.SummaryFormat == "" {
		r.Spec.Output.SummaryFormat = SummaryFormatTable
	}

	if r.Status.Phase == "" {
		r.Status.Phase = PhasePending
	}
}

// ValidateScaleTest performs comprehensive validation of the ScaleTest
func (r *ScaleTest) ValidateScaleTest() error {
	var allErrs field.ErrorList

	allErrs = append(allErrs, r.validateTypeMeta()...)
	allErrs = append(allErrs, r.validateTarget()...)
	allErrs = append(allErrs, r.validateTiming()...)
	allErrs = append(allErrs, r.validateScaling()...)
	allErrs = append(allErrs, r.validateGateway()...)
	allErrs = append(allErrs, r.validateOutput()...)

	if len(allErrs) == 0 {
		return nil
	}

	return fmt.Errorf("validation errors: %w", allErrs.ToAggregate())
}

func (r *ScaleTest) validateTypeMeta() field.ErrorList {
	var allErrs field.ErrorList

	if r.APIVersion != "" && r.APIVersion != GroupVersion.String() {
		allErrs = append(allErrs, field.NotSupported(field.NewPath("apiVersion"), r.APIVersion,
			[]string{GroupVersion.String()}))
	}
	if r.Kind != "" && r.Kind != ScaleTestKind {
		allErrs = append(allErrs, field.NotSupported(field.NewPath("kind"), r.Kind, []string{ScaleTestKind}))
	}

	return allErrs
}

// validateTarget validates the target deployment reference
func (r *ScaleTest) validateTarget() field.ErrorList {
	var allErrs field.ErrorList
	targetPath := field.NewPath("spec").Child("target")

	if r.Spec.Target.DeploymentName == "" {
		allErrs = append(allErrs, field.Required(targetPath.Child("deploymentName"), "deployment name is required"))
	} else {
		for _, msg := range validation.IsDNS1123Subdomain(r.Spec.Target.DeploymentName) {
			allErrs = append(allErrs, field.Invalid(targetPath.Child("deploymentName"), r.Spec.Target.DeploymentName, msg))
		}
	}

	for _, msg := range validation.IsDNS1123Label(r.Spec.Target.Namespace) {
		allErrs = append(allErrs, field.Invalid(targetPath.Child("namespace"), r.Spec.Target.Namespace, msg))
	}

	if r.Spec.TargetReplicas <= 0 {
		allErrs = append(allErrs, field.Invalid(field.NewPath("spec").Child("targetReplicas"),
			r.Spec.TargetReplicas, "must be positive"))
	}

	return allErrs
}

// validateTiming validates timeout and interval
func (r *ScaleTest) validateTiming() field.ErrorList {
	var allErrs field.ErrorList
	specPath := field.NewPath("spec")
	timeout := r.Spec.Timeout.Duration
	interval := r.Spec.Interval.Duration

	if timeout <= 0 {
		allErrs = append(allErrs, field.Invalid(specPath.Child("timeout"), timeout.String(), "must be positive"))
	}

	// Elapsed time is tracked in whole seconds
	if interval < time.Second {
		allErrs = append(allErrs, field.Invalid(specPath.Child("interval"), interval.String(),
			"must be at least 1s"))
	}

	if timeout > 0 && interval > timeout {
		allErrs = append(allErrs, field.Invalid(specPath.Child("interval"), interval.String(),
			"must not exceed timeout"))
	}

	return allErrs
}

func (r *ScaleTest) validateScaling() field.ErrorList {
	var allErrs field.ErrorList
	specPath := field.NewPath("spec")

	if r.Spec.ScaleBeforeTracking && r.Spec.Gateway.Type == GatewayMock {
		allErrs = append(allErrs, field.Forbidden(specPath.Child("scaleBeforeTracking"),
			"cannot scale a deployment when using the mock gateway"))
	}

	if r.Spec.RestoreReplicas && !r.Spec.ScaleBeforeTracking {
		allErrs = append(allErrs, field.Invalid(specPath.Child("restoreReplicas"), r.Spec.RestoreReplicas,
			"requires scaleBeforeTracking"))
	}

	return allErrs
}

// validateGateway validates the cluster state source
func (r *ScaleTest) validateGateway() field.ErrorList {
	var allErrs field.ErrorList
	gatewayPath := field.NewPath("spec").Child("gateway")

	switch r.Spec.Gateway.Type {
	case GatewayKubernetes:
	case GatewayPrometheus:
		prometheusPath := gatewayPath.Child("prometheusConfig")
		cfg := r.Spec.Gateway.PrometheusConfig
		if cfg == nil || cfg.URL == "" {
			allErrs = append(allErrs, field.Required(prometheusPath.Child("url"),
				"Prometheus URL is required when using the prometheus gateway"))
			break
		}
		if u, err := url.Parse(cfg.URL); err != nil || u.Scheme == "" || u.Host == "" {
			allErrs = append(allErrs, field.Invalid(prometheusPath.Child("url"), cfg.URL,
				"must be an absolute URL"))
		}
	case GatewayMock:
		if sim := r.Spec.Gateway.Simulation; sim != nil {
			simPath := gatewayPath.Child("simulation")
			if sim.Steps < 1 {
				allErrs = append(allErrs, field.Invalid(simPath.Child("steps"), sim.Steps, "must be at least 1"))
			}
			if sim.InitialNodes < 0 {
				allErrs = append(allErrs, field.Invalid(simPath.Child("initialNodes"), sim.InitialNodes, "must be non-negative"))
			}
			if sim.AddedNodes < 0 {
				allErrs = append(allErrs, field.Invalid(simPath.Child("addedNodes"), sim.AddedNodes, "must be non-negative"))
			}
		}
	default:
		allErrs = append(allErrs, field.NotSupported(gatewayPath.Child("type"), r.Spec.Gateway.Type,
			[]GatewayType{GatewayKubernetes, GatewayPrometheus, GatewayMock}))
	}

	return allErrs
}

// validateOutput validates the reporting configuration
func (r *ScaleTest) validateOutput() field.ErrorList {
	var allErrs field.ErrorList
	outputPath := field.NewPath("spec").Child("output")

	switch r.Spec.Output.SummaryFormat {
	case SummaryFormatYAML, SummaryFormatJSON, SummaryFormatTable:
	default:
		allErrs = append(allErrs, field.NotSupported(outputPath.Child("summaryFormat"), r.Spec.Output.SummaryFormat,
			[]SummaryFormat{SummaryFormatYAML, SummaryFormatJSON, SummaryFormatTable}))
	}

	return allErrs
}
