package kube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/apimachinery/pkg/util/yaml"
)

// Fake is an in-memory Interface for tests. Every mutating call is recorded
// in Ops ("apply Kind/Name", "delete Kind/Name", ...) so tests can assert
// exact ordering and abort points without a cluster. Reads are served from
// maps the test populates up front.
type Fake struct {
	NS           string
	PollInterval time.Duration

	mu          sync.Mutex
	Ops         []string
	Existing    map[string]bool            // "Kind/Name" -> present
	PodFixtures map[string][]corev1.Pod    // selector -> pods returned verbatim
	Jobs        map[string]*batchv1.Job    // name -> job
	NodeList    []corev1.Node
	LogLines    map[string]string // selector -> canned logs
	Version     string

	// Created pods are matched against selectors by their labels. When
	// ReadyOnCreate is set they report Running and Ready immediately.
	CreatedPods   []corev1.Pod
	ReadyOnCreate bool

	ApplyErr  map[string]error // "Kind/Name" -> forced apply failure
	DeleteErr map[string]error // "Kind/Name" -> forced delete failure (non-NotFound)
	PodsErr   map[string]error // selector -> forced list failure

	ExecFunc func(pod string, cmd []string) (string, error)
	CopyFunc func(pod, srcPath, destDir string) (int, error)

	VersionErr error
}

var _ Interface = (*Fake)(nil)

// NewFake returns a Fake for the namespace with fast condition polling.
func NewFake(namespace string) *Fake {
	return &Fake{
		NS:           namespace,
		PollInterval: time.Millisecond,
		Existing:     map[string]bool{},
		PodFixtures:  map[string][]corev1.Pod{},
		Jobs:         map[string]*batchv1.Job{},
		LogLines:     map[string]string{},
		Version:      "v1.33.0-fake",
	}
}

func refKey(kind, name string) string { return kind + "/" + name }

// Record appends an operation marker. Collaborators under test (backup
// hooks in particular) use it to interleave with the fake's own records.
func (f *Fake) Record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Ops = append(f.Ops, op)
}

// OpsOfPrefix returns the recorded operations starting with prefix, in order.
func (f *Fake) OpsOfPrefix(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, op := range f.Ops {
		if strings.HasPrefix(op, prefix) {
			out = append(out, op)
		}
	}
	return out
}

func (f *Fake) Namespace() string { return f.NS }

func (f *Fake) Apply(_ context.Context, manifest []byte) error {
	decoder := yaml.NewYAMLOrJSONDecoder(bytes.NewReader(manifest), 4096)
	for {
		var obj unstructured.Unstructured
		if err := decoder.Decode(&obj); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("fake apply: bad manifest: %w", err)
		}
		if len(obj.Object) == 0 {
			continue
		}
		key := refKey(obj.GetKind(), obj.GetName())
		if err := f.ApplyErr[key]; err != nil {
			f.Record("apply-failed " + key)
			return err
		}
		f.mu.Lock()
		f.Ops = append(f.Ops, "apply "+key)
		f.Existing[key] = true
		f.mu.Unlock()
	}
}

func (f *Fake) Delete(_ context.Context, kind, name string) error {
	key := refKey(kind, name)
	if err := f.DeleteErr[key]; err != nil {
		f.Record("delete-failed " + key)
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Ops = append(f.Ops, "delete "+key)
	if !f.Existing[key] {
		return apierrors.NewNotFound(schema.GroupResource{Resource: strings.ToLower(kind) + "s"}, name)
	}
	delete(f.Existing, key)
	return nil
}

func (f *Fake) Exists(_ context.Context, kind, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Existing[refKey(kind, name)], nil
}

func (f *Fake) Exec(_ context.Context, pod string, cmd []string) (string, error) {
	f.Record("exec " + pod + " " + strings.Join(cmd, " "))
	if f.ExecFunc == nil {
		return "", nil
	}
	return f.ExecFunc(pod, cmd)
}

func (f *Fake) CopyFromPod(_ context.Context, pod, srcPath, destDir string) (int, error) {
	f.Record("copy " + pod + ":" + srcPath)
	if f.CopyFunc == nil {
		return 0, nil
	}
	return f.CopyFunc(pod, srcPath, destDir)
}

func (f *Fake) PodLogs(_ context.Context, selector string, _ int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.LogLines[selector], nil
}

func (f *Fake) Pods(_ context.Context, selector string) ([]corev1.Pod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.PodsErr[selector]; err != nil {
		return nil, err
	}
	pods := append([]corev1.Pod{}, f.PodFixtures[selector]...)
	for _, pod := range f.CreatedPods {
		if matchesSelector(pod.Labels, selector) {
			pods = append(pods, pod)
		}
	}
	return pods, nil
}

func (f *Fake) CreatePod(_ context.Context, pod *corev1.Pod) error {
	p := *pod.DeepCopy()
	if f.ReadyOnCreate {
		p.Status.Phase = corev1.PodRunning
		p.Status.Conditions = append(p.Status.Conditions, corev1.PodCondition{
			Type:   corev1.PodReady,
			Status: corev1.ConditionTrue,
		})
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Ops = append(f.Ops, "create Pod/"+pod.Name)
	f.Existing[refKey("Pod", pod.Name)] = true
	f.CreatedPods = append(f.CreatedPods, p)
	return nil
}

func (f *Fake) Job(_ context.Context, name string) (*batchv1.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.Jobs[name]
	if !ok {
		return nil, apierrors.NewNotFound(schema.GroupResource{Group: "batch", Resource: "jobs"}, name)
	}
	return job, nil
}

func (f *Fake) Nodes(_ context.Context) ([]corev1.Node, error) {
	return f.NodeList, nil
}

func (f *Fake) ServerVersion(_ context.Context) (string, error) {
	if f.VersionErr != nil {
		return "", f.VersionErr
	}
	return f.Version, nil
}

func (f *Fake) EnsureNamespace(_ context.Context) error {
	f.Record("ensure-namespace " + f.NS)
	return nil
}

func (f *Fake) WaitForCondition(ctx context.Context, timeout time.Duration, cond ConditionFunc) error {
	interval := f.PollInterval
	if interval <= 0 {
		interval = time.Millisecond
	}
	return wait.PollUntilContextTimeout(ctx, interval, timeout, true,
		wait.ConditionWithContextFunc(cond))
}

// matchesSelector checks a simple "k=v,k2=v2" equality selector against the
// label set. That is the only selector shape this tool emits.
func matchesSelector(podLabels map[string]string, selector string) bool {
	for _, pair := range strings.Split(selector, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || podLabels[k] != v {
			return false
		}
	}
	return true
}
