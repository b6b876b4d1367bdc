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
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	telemetryv1alpha1 "github.com/wesleyemery/k8s-scale-telemetry/api/v1alpha1"
)

// options holds the command line configuration. Flag defaults fall back to
// environment variables where one is documented.
type options struct {
	configPath          string
	namespace           string
	deployment          string
	targetReplicas      int
	timeout             time.Duration
	interval            time.Duration
	gatewayType         string
	prometheusURL       string
	insecureSkipVerify  bool
	scaleBeforeTracking bool
	restoreReplicas     bool
	outputDir           string
	summaryFormat       string
	metricsAddr         string
	metricsTextfile     string
	failOnTimeout       bool
}

func (o *options) bindFlags(fs *flag.FlagSet) {
	fs.StringVar(&o.configPath, "config", "", "Path to a ScaleTest YAML document.")
	fs.StringVar(&o.namespace, "namespace", getEnv("SCALE_NAMESPACE", telemetryv1alpha1.DefaultNamespace),
		"Namespace of the deployment to observe (can also be set via SCALE_NAMESPACE env var)")
	fs.StringVar(&o.deployment, "deployment", getEnv("SCALE_DEPLOYMENT", ""),
		"Name of the deployment to observe (can also be set via SCALE_DEPLOYMENT env var)")
	fs.IntVar(&o.targetReplicas, "target-replicas", 0, "Available replica count that ends the run.")
	fs.DurationVar(&o.timeout, "timeout", telemetryv1alpha1.DefaultTimeout, "Maximum time to sample for.")
	fs.DurationVar(&o.interval, "interval", telemetryv1alpha1.DefaultInterval, "Time to wait between samples.")
	fs.StringVar(&o.gatewayType, "gateway", string(telemetryv1alpha1.GatewayKubernetes),
		"Source of cluster state: kubernetes, prometheus or mock.")
	fs.StringVar(&o.prometheusURL, "prometheus-url", getEnv("PROMETHEUS_URL", ""),
		"Prometheus server URL (can also be set via PROMETHEUS_URL env var)")
	fs.BoolVar(&o.insecureSkipVerify, "prometheus-insecure-skip-verify", false,
		"Skip TLS verification when querying Prometheus.")
	fs.BoolVar(&o.scaleBeforeTracking, "scale-before-tracking", false,
		"Patch the deployment to the target replica count before sampling.")
	fs.BoolVar(&o.restoreReplicas, "restore-replicas", false,
		"Scale the deployment back to its previous replica count after sampling.")
	fs.StringVar(&o.outputDir, "output-dir", "", "Directory to write CSV files to. Disabled when empty.")
	fs.StringVar(&o.summaryFormat, "summary-format", string(telemetryv1alpha1.SummaryFormatTable),
		"Format of the run summary: yaml, json or table.")
	fs.StringVar(&o.metricsAddr, "metrics-bind-address", "0",
		"The address the metrics endpoint binds to during the run. Use 0 to disable it.")
	fs.StringVar(&o.metricsTextfile, "metrics-textfile", "", "File to write run metrics to in Prometheus text format.")
	fs.BoolVar(&o.failOnTimeout, "fail-on-timeout", false, "Exit with code 2 if the target is not reached in time.")
}

// buildScaleTest assembles the run configuration. Values from the config file
// win over environment fallbacks; flags set on the command line win over both.
func buildScaleTest(o *options, fs *flag.FlagSet) (*telemetryv1alpha1.ScaleTest, error) {
	if o.targetReplicas < math.MinInt32 || o.targetReplicas > math.MaxInt32 {
		return nil, fmt.Errorf("--target-replicas %d is out of range", o.targetReplicas)
	}

	if o.configPath == "" {
		st := telemetryv1alpha1.NewScaleTest(o.namespace, o.deployment, int32(o.targetReplicas))
		applyFlags(st, o, func(string) bool { return true })
		st.Default()
		return st, nil
	}

	st, err := telemetryv1alpha1.LoadScaleTest(o.configPath)
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	applyFlags(st, o, func(name string) bool { return set[name] })
	st.Default()

	return st, nil
}

func applyFlags(st *telemetryv1alpha1.ScaleTest, o *options, apply func(name string) bool) {
	spec := &st.Spec

	if apply("namespace") {
		spec.Target.Namespace = o.namespace
	}
	if apply("deployment") {
		spec.Target.DeploymentName = o.deployment
	}
	if apply("target-replicas") {
		spec.TargetReplicas = int32(o.targetReplicas)
	}
	if apply("timeout") {
		spec.Timeout = metav1.Duration{Duration: o.timeout}
	}
	if apply("interval") {
		spec.Interval = metav1.Duration{Duration: o.interval}
	}
	if apply("gateway") {
		spec.Gateway.Type = telemetryv1alpha1.GatewayType(o.gatewayType)
	}
	if apply("prometheus-url") && o.prometheusURL != "" {
		if spec.Gateway.PrometheusConfig == nil {
			spec.Gateway.PrometheusConfig = &telemetryv1alpha1.PrometheusConfig{}
		}
		spec.Gateway.PrometheusConfig.URL = o.prometheusURL
	}
	if apply("prometheus-insecure-skip-verify") && o.insecureSkipVerify {
		if spec.Gateway.PrometheusConfig == nil {
			spec.Gateway.PrometheusConfig = &telemetryv1alpha1.PrometheusConfig{}
		}
		spec.Gateway.PrometheusConfig.InsecureSkipTLSVerify = true
	}
	if apply("scale-before-tracking") {
		spec.ScaleBeforeTracking = o.scaleBeforeTracking
	}
	if apply("restore-replicas") {
		spec.RestoreReplicas = o.restoreReplicas
	}
	if apply("output-dir") {
		spec.Output.Directory = o.outputDir
	}
	if apply("summary-format") {
		spec.Output.SummaryFormat = telemetryv1alpha1.SummaryFormat(o.summaryFormat)
	}
	if apply("metrics-textfile") {
		spec.Output.MetricsTextfile = o.metricsTextfile
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
