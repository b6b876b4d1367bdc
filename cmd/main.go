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
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	// Import all Kubernetes client auth plugins (e.g. Azure, GCP, OIDC, etc.)
	// to ensure that the kubernetes gateway can make use of them.
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	telemetryv1alpha1 "github.com/wesleyemery/k8s-scale-telemetry/api/v1alpha1"
	"github.com/wesleyemery/k8s-scale-telemetry/internal/metrics"
	"github.com/wesleyemery/k8s-scale-telemetry/internal/scaler"
	"github.com/wesleyemery/k8s-scale-telemetry/pkg/gateway"
	"github.com/wesleyemery/k8s-scale-telemetry/pkg/report"
	"github.com/wesleyemery/k8s-scale-telemetry/pkg/telemetry"
)

const (
	exitOK      = 0
	exitError   = 1
	exitTimeout = 2
)

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
}

func main() {
	var o options
	o.bindFlags(flag.CommandLine)

	opts := zap.Options{
		Development: true,
	}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	st, err := buildScaleTest(&o, flag.CommandLine)
	if err != nil {
		setupLog.Error(err, "Failed to load scale test configuration")
		os.Exit(exitError)
	}
	if err := st.ValidateScaleTest(); err != nil {
		setupLog.Error(err, "Invalid scale test configuration")
		os.Exit(exitError)
	}

	os.Exit(run(ctrl.SetupSignalHandler(), st, o.metricsAddr, o.failOnTimeout))
}

// run executes a scale test and returns the process exit code
func run(ctx context.Context, st *telemetryv1alpha1.ScaleTest, metricsAddr string, failOnTimeout bool) int {
	spec := st.Spec
	namespace, name := spec.Target.Namespace, spec.Target.DeploymentName

	var kubeClient client.Client
	if spec.Gateway.Type == telemetryv1alpha1.GatewayKubernetes || spec.ScaleBeforeTracking {
		var err error
		kubeClient, err = client.New(ctrl.GetConfigOrDie(), client.Options{Scheme: scheme})
		if err != nil {
			setupLog.Error(err, "Unable to create Kubernetes client")
			return exitError
		}
	}

	gw, err := newGateway(spec, kubeClient)
	if err != nil {
		setupLog.Error(err, "Unable to create gateway", "gateway", spec.Gateway.Type)
		return exitError
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(registry, namespace, name)

	if metricsAddr != "" && metricsAddr != "0" {
		stop := serveMetrics(metricsAddr, registry)
		defer stop()
	}

	if spec.ScaleBeforeTracking {
		previous, err := scaler.ScaleDeployment(ctx, kubeClient, namespace, name, spec.TargetReplicas)
		if err != nil {
			setupLog.Error(err, "Failed to scale deployment", "deployment", name, "replicas", spec.TargetReplicas)
			return exitError
		}

		if spec.RestoreReplicas {
			defer func() {
				// The run context may already be cancelled
				restoreCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if _, err := scaler.ScaleDeployment(restoreCtx, kubeClient, namespace, name, previous); err != nil {
					setupLog.Error(err, "Failed to restore deployment replicas", "deployment", name, "replicas", previous)
				}
			}()
		}
	}

	sampler := telemetry.NewSampler(gw, namespace, name, ctrl.Log.WithName("sampler"))
	sampler.Observer = recorder

	result, err := sampler.Run(ctx, spec.TargetReplicas, spec.Timeout.Duration, spec.Interval.Duration)
	if err != nil && result == nil {
		setupLog.Error(err, "Scaling telemetry failed", "deployment", name)
		return exitError
	}
	if err != nil {
		setupLog.Error(err, "Scaling telemetry interrupted, reporting partial results", "deployment", name)
	}

	recorder.Complete(result)

	if err := writeReports(st, result, registry); err != nil {
		setupLog.Error(err, "Failed to write reports")
		return exitError
	}

	switch {
	case err != nil:
		return exitError
	case !result.ReachedTarget && failOnTimeout:
		return exitTimeout
	default:
		return exitOK
	}
}

func newGateway(spec telemetryv1alpha1.ScaleTestSpec, kubeClient client.Client) (telemetry.Gateway, error) {
	switch spec.Gateway.Type {
	case telemetryv1alpha1.GatewayKubernetes:
		setupLog.Info("Using Kubernetes gateway")
		return gateway.NewKubernetesGateway(kubeClient), nil
	case telemetryv1alpha1.GatewayPrometheus:
		cfg := spec.Gateway.PrometheusConfig
		setupLog.Info("Using Prometheus gateway", "url", cfg.URL)

		transport := http.DefaultTransport
		if cfg.InsecureSkipTLSVerify {
			t := http.DefaultTransport.(*http.Transport).Clone()
			t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
			transport = t
		}
		return gateway.NewPrometheusGateway(cfg.URL, transport)
	case telemetryv1alpha1.GatewayMock:
		sim := spec.Gateway.Simulation
		setupLog.Info("Using simulated scale-out", "steps", sim.Steps, "initialNodes", sim.InitialNodes, "addedNodes", sim.AddedNodes)
		return gateway.NewSimulatedScaleOut(spec.TargetReplicas, sim.Steps, sim.InitialNodes, sim.AddedNodes), nil
	default:
		return nil, fmt.Errorf("unsupported gateway type %q", spec.Gateway.Type)
	}
}

// serveMetrics exposes the run metrics until the returned func is called
func serveMetrics(addr string, registry *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		setupLog.Info("Serving run metrics", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			setupLog.Error(err, "Metrics server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

func writeReports(st *telemetryv1alpha1.ScaleTest, result *telemetry.RunResult, registry prometheus.Gatherer) error {
	output := st.Spec.Output

	if output.Directory != "" {
		paths, err := report.WriteCSVFiles(output.Directory, result)
		if err != nil {
			return err
		}
		setupLog.Info("Telemetry written", "files", paths)
	}

	if output.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(registry, output.MetricsTextfile); err != nil {
			return err
		}
		setupLog.Info("Run metrics written", "path", output.MetricsTextfile)
	}

	st.Status = report.Summarize(result)
	return report.WriteSummary(os.Stdout, st.Status, output.SummaryFormat)
}
