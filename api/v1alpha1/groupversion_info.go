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
// Package v1alpha1 contains the ScaleTest configuration API
package v1alpha1

import (
	"k8s.io/apimachinery/pkg/runtime/schema"
)

var (
	// GroupVersion is the group version of ScaleTest documents
	GroupVersion = schema.GroupVersion{Group: "telemetry.k8s-scale-telemetry.io", Version: "v1alpha1"}
)

// ScaleTestKind is the kind of ScaleTest documents
const ScaleTestKind = "ScaleTest"
