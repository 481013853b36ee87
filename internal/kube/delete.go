package kube

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// IsNotFound reports whether err means the resource is absent. Callers use
// it to treat deletions of already-gone resources as success.
func IsNotFound(err error) bool {
	return apierrors.IsNotFound(err)
}

// Delete removes a resource by kind and name. Deletion propagates to
// dependents (job pods in particular) in the background. The NotFound error
// passes through unchanged so callers can classify it.
func (c *client) Delete(ctx context.Context, kind, name string) error {
	gvr, namespaced, err := gvrForKind(kind)
	if err != nil {
		return err
	}

	propagation := metav1.DeletePropagationBackground
	opts := metav1.DeleteOptions{PropagationPolicy: &propagation}

	if namespaced {
		err = c.dynamic.Resource(gvr).Namespace(c.namespace).Delete(ctx, name, opts)
	} else {
		err = c.dynamic.Resource(gvr).Delete(ctx, name, opts)
	}
	if err != nil {
		if IsNotFound(err) {
			return err
		}
		return fmt.Errorf("failed to delete %s %s: %w", kind, name, err)
	}
	return nil
}

// Exists reports whether a resource is present.
func (c *client) Exists(ctx context.Context, kind, name string) (bool, error) {
	gvr, namespaced, err := gvrForKind(kind)
	if err != nil {
		return false, err
	}

	if namespaced {
		_, err = c.dynamic.Resource(gvr).Namespace(c.namespace).Get(ctx, name, metav1.GetOptions{})
	} else {
		_, err = c.dynamic.Resource(gvr).Get(ctx, name, metav1.GetOptions{})
	}
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check %s %s: %w", kind, name, err)
	}
	return true, nil
}

// gvrForKind maps the kinds this tool manages to their API resources.
// Restricting the set keeps typos in resource lists from turning into
// surprising API calls.
func gvrForKind(kind string) (schema.GroupVersionResource, bool, error) {
	switch kind {
	case "Deployment":
		return schema.GroupVersionResource{Group: "apps", Version: "v1", Resource: "deployments"}, true, nil
	case "Job":
		return schema.GroupVersionResource{Group: "batch", Version: "v1", Resource: "jobs"}, true, nil
	case "Service":
		return schema.GroupVersionResource{Version: "v1", Resource: "services"}, true, nil
	case "ConfigMap":
		return schema.GroupVersionResource{Version: "v1", Resource: "configmaps"}, true, nil
	case "Secret":
		return schema.GroupVersionResource{Version: "v1", Resource: "secrets"}, true, nil
	case "Pod":
		return schema.GroupVersionResource{Version: "v1", Resource: "pods"}, true, nil
	case "PersistentVolumeClaim":
		return schema.GroupVersionResource{Version: "v1", Resource: "persistentvolumeclaims"}, true, nil
	case "PersistentVolume":
		return schema.GroupVersionResource{Version: "v1", Resource: "persistentvolumes"}, false, nil
	case "Namespace":
		return schema.GroupVersionResource{Version: "v1", Resource: "namespaces"}, false, nil
	default:
		return schema.GroupVersionResource{}, false, fmt.Errorf("unsupported resource kind %q", kind)
	}
}
