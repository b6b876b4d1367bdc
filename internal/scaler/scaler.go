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

package scaler

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

//+kubebuilder:rbac:groups="apps",resources=deployments,verbs=get;list;watch;patch
//+kubebuilder:rbac:groups="",resources=nodes,verbs=get;list;watch

// ScaleDeployment sets the desired replica count of a Deployment and returns
// the count it had before. A Deployment without spec.replicas is reported as 1,
// the API server default.
func ScaleDeployment(ctx context.Context, c client.Client, namespace, name string, replicas int32) (int32, error) {
	logger := log.FromContext(ctx)

	var deployment appsv1.Deployment
	if err := c.Get(ctx, types.NamespacedName{Name: name, Namespace: namespace}, &deployment); err != nil {
		return 0, fmt.Errorf("failed to get deployment %s/%s: %w", namespace, name, err)
	}

	previous := ptr.Deref(deployment.Spec.Replicas, 1)
	if previous == replicas {
		logger.Info("Deployment already at requested replicas", "deployment", name, "replicas", replicas)
		return previous, nil
	}

	patch := client.MergeFrom(deployment.DeepCopy())
	deployment.Spec.Replicas = ptr.To(replicas)

	if err := c.Patch(ctx, &deployment, patch); err != nil {
		return previous, fmt.Errorf("failed to scale deployment %s/%s: %w", namespace, name, err)
	}

	logger.Info("Successfully scaled deployment", "deployment", name, "from", previous, "to", replicas)
	return previous, nil
}
