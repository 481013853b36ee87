package kube

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/remotecommand"

	"github.com/searchstack/osdeploy/internal/util/ptr"
)

// Exec runs a command in the named pod's first container and returns its
// stdout. Stderr is folded into the error on failure.
func (c *client) Exec(ctx context.Context, pod string, cmd []string) (string, error) {
	if c.restConfig == nil {
		return "", fmt.Errorf("exec requires a REST config, none available")
	}

	req := c.clientset.CoreV1().RESTClient().
		Post().
		Resource("pods").
		Name(pod).
		Namespace(c.namespace).
		SubResource("exec").
		VersionedParams(&corev1.PodExecOptions{
			Command: cmd,
			Stdout:  true,
			Stderr:  true,
		}, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(c.restConfig, "POST", req.URL())
	if err != nil {
		return "", fmt.Errorf("failed to create executor for pod %s: %w", pod, err)
	}

	var stdout, stderr bytes.Buffer
	err = executor.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdout: &stdout,
		Stderr: &stderr,
	})
	if err != nil {
		return stdout.String(), fmt.Errorf("exec in pod %s failed: %w (stderr: %s)",
			pod, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// CopyFromPod copies the contents of srcPath in the named pod into destDir,
// streaming a tar archive produced inside the pod. Returns the number of
// regular files written.
func (c *client) CopyFromPod(ctx context.Context, pod, srcPath, destDir string) (int, error) {
	if c.restConfig == nil {
		return 0, fmt.Errorf("copy requires a REST config, none available")
	}

	req := c.clientset.CoreV1().RESTClient().
		Post().
		Resource("pods").
		Name(pod).
		Namespace(c.namespace).
		SubResource("exec").
		VersionedParams(&corev1.PodExecOptions{
			Command: []string{"tar", "cf", "-", "-C", srcPath, "."},
			Stdout:  true,
			Stderr:  true,
		}, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(c.restConfig, "POST", req.URL())
	if err != nil {
		return 0, fmt.Errorf("failed to create executor for pod %s: %w", pod, err)
	}

	reader, writer := io.Pipe()
	var stderr bytes.Buffer

	streamErr := make(chan error, 1)
	go func() {
		err := executor.StreamWithContext(ctx, remotecommand.StreamOptions{
			Stdout: writer,
			Stderr: &stderr,
		})
		writer.CloseWithError(err)
		streamErr <- err
	}()

	files, untarErr := untar(reader, destDir)
	if err := <-streamErr; err != nil {
		return files, fmt.Errorf("tar stream from pod %s failed: %w (stderr: %s)",
			pod, err, strings.TrimSpace(stderr.String()))
	}
	if untarErr != nil {
		return files, fmt.Errorf("failed to extract archive from pod %s: %w", pod, untarErr)
	}
	return files, nil
}

// untar writes the archive's regular files under destDir, creating
// directories as needed. Entries escaping destDir are rejected.
func untar(r io.Reader, destDir string) (int, error) {
	tr := tar.NewReader(r)
	files := 0

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return files, nil
		}
		if err != nil {
			return files, err
		}

		name := filepath.Clean(hdr.Name)
		if name == "." || strings.HasPrefix(name, "..") {
			if name != "." {
				return files, fmt.Errorf("archive entry escapes destination: %s", hdr.Name)
			}
			continue
		}
		target := filepath.Join(destDir, name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o750); err != nil {
				return files, err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
				return files, err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode)&0o777)
			if err != nil {
				return files, err
			}
			if _, err := io.Copy(f, tr); err != nil { //nolint:gosec // certificate files are small
				_ = f.Close()
				return files, err
			}
			if err := f.Close(); err != nil {
				return files, err
			}
			files++
		default:
			// Symlinks and devices have no business in a certificate volume.
		}
	}
}

// PodLogs returns recent log lines from every pod matching the selector,
// prefixed with the pod name so interleaved output stays attributable.
func (c *client) PodLogs(ctx context.Context, selector string, tail int64) (string, error) {
	pods, err := c.Pods(ctx, selector)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, pod := range pods {
		req := c.clientset.CoreV1().Pods(c.namespace).GetLogs(pod.Name, &corev1.PodLogOptions{
			TailLines: ptr.To(tail),
		})
		raw, err := req.DoRaw(ctx)
		if err != nil {
			fmt.Fprintf(&b, "=== %s: failed to get logs: %v\n", pod.Name, err)
			continue
		}
		fmt.Fprintf(&b, "=== %s\n%s", pod.Name, raw)
	}
	return b.String(), nil
}
