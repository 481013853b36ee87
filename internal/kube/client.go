// Package kube is the narrow resource-client boundary to the Kubernetes API.
// Every operation is a single round trip; retry and sequencing policy belong
// to callers. All blocking waits funnel through WaitForCondition so the
// polling behavior lives in exactly one place.
package kube

import (
	"context"
	"fmt"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/searchstack/osdeploy/internal/config"
)

// FieldManager identifies this tool in server-side apply operations.
const FieldManager = "osdeploy"

// ConditionFunc is one observation of a readiness condition. It returns true
// when the condition holds; a non-nil error aborts the wait.
type ConditionFunc func(ctx context.Context) (bool, error)

// Interface is the resource-client contract consumed by the orchestrator,
// cleanup engine, and their sub-services. Implementations return errors
// distinguishable with IsNotFound where a resource is absent.
type Interface interface {
	// Apply applies multi-document YAML using server-side apply.
	Apply(ctx context.Context, manifest []byte) error

	// Delete removes a resource by kind and name, in the client's namespace
	// for namespaced kinds.
	Delete(ctx context.Context, kind, name string) error

	// Exists reports whether a resource is present.
	Exists(ctx context.Context, kind, name string) (bool, error)

	// Exec runs a command in the named pod and returns its stdout.
	Exec(ctx context.Context, pod string, cmd []string) (string, error)

	// CopyFromPod copies the contents of srcPath in the named pod into
	// destDir on the local filesystem, returning the number of files written.
	CopyFromPod(ctx context.Context, pod, srcPath, destDir string) (int, error)

	// PodLogs returns recent log lines from all pods matching the selector.
	PodLogs(ctx context.Context, selector string, tail int64) (string, error)

	// Pods lists pods matching the label selector.
	Pods(ctx context.Context, selector string) ([]corev1.Pod, error)

	// CreatePod creates a pod from a typed spec.
	CreatePod(ctx context.Context, pod *corev1.Pod) error

	// Job fetches a job by name.
	Job(ctx context.Context, name string) (*batchv1.Job, error)

	// Nodes lists all cluster nodes.
	Nodes(ctx context.Context) ([]corev1.Node, error)

	// ServerVersion queries the control plane version, proving reachability.
	ServerVersion(ctx context.Context) (string, error)

	// EnsureNamespace creates the client's namespace if it does not exist.
	EnsureNamespace(ctx context.Context) error

	// Namespace returns the namespace this client operates in.
	Namespace() string

	// WaitForCondition polls cond at a fixed interval until it holds, the
	// timeout elapses, or ctx is cancelled. The first poll is immediate.
	WaitForCondition(ctx context.Context, timeout time.Duration, cond ConditionFunc) error
}

// client implements Interface using k8s.io/client-go.
type client struct {
	clientset    kubernetes.Interface
	dynamic      dynamic.Interface
	mapper       meta.RESTMapper
	restConfig   *rest.Config
	namespace    string
	pollInterval time.Duration
}

// Option adjusts client construction.
type Option func(*client)

// WithPollInterval overrides the default 5s condition poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// NewClient builds a client for the environment's cluster and namespace.
// Kubeconfig resolution order: explicit path from the environment, then the
// standard ~/.kube/config location.
func NewClient(env config.Environment, opts ...Option) (Interface, error) {
	path := env.Kubeconfig
	if path == "" {
		path = clientcmd.NewDefaultClientConfigLoadingRules().GetDefaultFilename()
	}

	restConfig, err := clientcmd.BuildConfigFromFlags("", path)
	if err != nil {
		return nil, fmt.Errorf("failed to build kubeconfig from %s: %w", path, err)
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	dynamicClient, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	discoveryClient, err := discovery.NewDiscoveryClientForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery client: %w", err)
	}

	groupResources, err := restmapper.GetAPIGroupResources(discoveryClient)
	if err != nil {
		return nil, fmt.Errorf("failed to get API group resources: %w", err)
	}

	c := &client{
		clientset:    clientset,
		dynamic:      dynamicClient,
		mapper:       restmapper.NewDiscoveryRESTMapper(groupResources),
		restConfig:   restConfig,
		namespace:    env.Namespace,
		pollInterval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewFromClients builds a client from pre-configured clients. This is how
// tests inject fakes; mapper may be nil when Apply is not exercised.
func NewFromClients(clientset kubernetes.Interface, dynamicClient dynamic.Interface, mapper meta.RESTMapper, namespace string, opts ...Option) Interface {
	c := &client{
		clientset:    clientset,
		dynamic:      dynamicClient,
		mapper:       mapper,
		namespace:    namespace,
		pollInterval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *client) Namespace() string { return c.namespace }

func (c *client) Pods(ctx context.Context, selector string) ([]corev1.Pod, error) {
	list, err := c.clientset.CoreV1().Pods(c.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: selector,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods for %q: %w", selector, err)
	}
	return list.Items, nil
}

func (c *client) CreatePod(ctx context.Context, pod *corev1.Pod) error {
	if _, err := c.clientset.CoreV1().Pods(c.namespace).Create(ctx, pod, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("failed to create pod %s: %w", pod.Name, err)
	}
	return nil
}

func (c *client) Job(ctx context.Context, name string) (*batchv1.Job, error) {
	job, err := c.clientset.BatchV1().Jobs(c.namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (c *client) Nodes(ctx context.Context) ([]corev1.Node, error) {
	list, err := c.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	return list.Items, nil
}

func (c *client) ServerVersion(ctx context.Context) (string, error) {
	info, err := c.clientset.Discovery().ServerVersion()
	if err != nil {
		return "", fmt.Errorf("control plane unreachable: %w", err)
	}
	return info.GitVersion, nil
}

func (c *client) EnsureNamespace(ctx context.Context) error {
	_, err := c.clientset.CoreV1().Namespaces().Get(ctx, c.namespace, metav1.GetOptions{})
	if err == nil {
		return nil
	}
	if !IsNotFound(err) {
		return fmt.Errorf("failed to check namespace %s: %w", c.namespace, err)
	}

	ns := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{Name: c.namespace},
	}
	if _, err := c.clientset.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("failed to create namespace %s: %w", c.namespace, err)
	}
	return nil
}
