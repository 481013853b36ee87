// Package certbackup protects the TLS certificate volume across destructive
// operations. Before the claim is deleted anywhere, the manager mounts it
// into a short-lived helper pod, copies its contents to a timestamped local
// directory, and optionally mirrors them to S3. The helper is a scoped
// acquisition: its removal is deferred at creation time and runs on every
// exit path.
package certbackup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/searchstack/osdeploy/internal/config"
	"github.com/searchstack/osdeploy/internal/kube"
	"github.com/searchstack/osdeploy/internal/readiness"
	"github.com/searchstack/osdeploy/internal/util/labels"
	"github.com/searchstack/osdeploy/internal/util/naming"
	"github.com/searchstack/osdeploy/internal/util/ptr"
)

// certMountPath is where the claim is mounted inside the helper pod.
const certMountPath = "/certs"

const helperImage = "busybox:1.36"

// CertificateBackup describes one completed backup.
type CertificateBackup struct {
	SourceClaim string
	Dir         string
	Timestamp   time.Time
	Files       int
}

// BackupError means the certificate contents could not be saved. Callers
// must surface it loudly before any destructive deletion proceeds: the
// deletion is allowed to continue, but the operator has to see the
// data-loss risk.
type BackupError struct {
	Stage string
	Err   error
}

func (e *BackupError) Error() string {
	return fmt.Sprintf("certificate backup failed at %s: %v", e.Stage, e.Err)
}

func (e *BackupError) Unwrap() error { return e.Err }

// Manager runs the backup-before-destroy protocol.
type Manager struct {
	client     kube.Interface
	waiter     *readiness.Waiter
	backupRoot string
	timeouts   *config.Timeouts
	uploader   *Uploader

	now    func() time.Time
	suffix func() string
}

// Option adjusts manager construction.
type Option func(*Manager)

// WithUploader mirrors completed backups to S3. Upload failures are
// warnings, never backup failures.
func WithUploader(u *Uploader) Option {
	return func(m *Manager) { m.uploader = u }
}

// WithClock fixes the timestamp source. Tests use it to pin the backup
// directory name.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithSuffix fixes the helper pod name suffix.
func WithSuffix(suffix func() string) Option {
	return func(m *Manager) { m.suffix = suffix }
}

// New returns a manager writing backups under backupRoot.
func New(client kube.Interface, backupRoot string, timeouts *config.Timeouts, opts ...Option) *Manager {
	m := &Manager{
		client:     client,
		waiter:     readiness.NewWaiter(client),
		backupRoot: backupRoot,
		timeouts:   timeouts,
		now:        time.Now,
		suffix:     func() string { return uuid.NewString()[:8] },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Backup saves the certificate volume's contents if the claim exists.
// Returns (nil, nil) when there is nothing to back up — no claim, or an
// empty mount. A *BackupError means data loss is possible if the caller
// proceeds with deletion.
func (m *Manager) Backup(ctx context.Context) (*CertificateBackup, error) {
	exists, err := m.client.Exists(ctx, "PersistentVolumeClaim", naming.CertClaim)
	if err != nil {
		return nil, &BackupError{Stage: "claim check", Err: err}
	}
	if !exists {
		slog.Debug("no certificate claim present, skipping backup")
		return nil, nil
	}

	slog.Info("backing up certificate volume", "claim", naming.CertClaim)

	helper, release, err := m.acquireHelper(ctx)
	if err != nil {
		return nil, &BackupError{Stage: "helper creation", Err: err}
	}
	defer release()

	readySpec := readiness.PodsReadySpec(labels.CertBackupHelper(), 1, m.timeouts.HelperStartup)
	if err := m.waiter.Wait(ctx, readySpec); err != nil {
		return nil, &BackupError{Stage: "helper startup", Err: err}
	}

	listing, err := m.client.Exec(ctx, helper, []string{"ls", "-A", certMountPath})
	if err != nil {
		return nil, &BackupError{Stage: "volume probe", Err: err}
	}
	if strings.TrimSpace(listing) == "" {
		slog.Info("certificate volume is empty, nothing to back up")
		return nil, nil
	}

	ts := m.now()
	dir := filepath.Join(m.backupRoot, naming.BackupDir(ts))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, &BackupError{Stage: "backup directory", Err: err}
	}

	files, err := m.client.CopyFromPod(ctx, helper, certMountPath, dir)
	if err != nil {
		return nil, &BackupError{Stage: "copy", Err: err}
	}

	backup := &CertificateBackup{
		SourceClaim: naming.CertClaim,
		Dir:         dir,
		Timestamp:   ts,
		Files:       files,
	}
	slog.Info("certificates backed up", "dir", dir, "files", files)

	if m.uploader != nil {
		if err := m.uploader.UploadDir(ctx, dir); err != nil {
			slog.Warn("S3 mirror of certificate backup failed; local copy is intact",
				"dir", dir, "error", err)
		}
	}
	return backup, nil
}

// acquireHelper creates the helper pod and returns its name plus a release
// function. The release uses a context that survives cancellation so an
// interrupted backup still cleans up after itself.
func (m *Manager) acquireHelper(ctx context.Context) (string, func(), error) {
	name := naming.BackupHelper(m.suffix())
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:   name,
			Labels: map[string]string{"app": labels.AppCertBackup},
		},
		Spec: corev1.PodSpec{
			RestartPolicy:                 corev1.RestartPolicyNever,
			TerminationGracePeriodSeconds: ptr.To(int64(0)),
			Containers: []corev1.Container{{
				Name:    "backup",
				Image:   helperImage,
				Command: []string{"sleep", "3600"},
				VolumeMounts: []corev1.VolumeMount{{
					Name:      "certs",
					MountPath: certMountPath,
					ReadOnly:  true,
				}},
			}},
			Volumes: []corev1.Volume{{
				Name: "certs",
				VolumeSource: corev1.VolumeSource{
					PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{
						ClaimName: naming.CertClaim,
						ReadOnly:  true,
					},
				},
			}},
		},
	}

	if err := m.client.CreatePod(ctx, pod); err != nil {
		return "", nil, err
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := m.client.Delete(releaseCtx, "Pod", name); err != nil && !kube.IsNotFound(err) {
			slog.Warn("failed to remove backup helper pod", "pod", name, "error", err)
		}
	}
	return name, release, nil
}
