package certbackup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchstack/osdeploy/internal/config"
)

type fakeS3 struct {
	keys  []string
	fail  func(key string) error
	calls atomic.Int32
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.calls.Add(1)
	if f.fail != nil {
		if err := f.fail(*in.Key); err != nil {
			return nil, err
		}
	}
	f.keys = append(f.keys, *in.Key)
	return &s3.PutObjectOutput{}, nil
}

func writeBackupFixture(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "opensearch-certs-backup-20260823_143005")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	for _, name := range []string{"esnode.pem", "root-ca.pem"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("PEM"), 0o600))
	}
	return dir
}

func TestUploadDirKeysObjectsByBackupName(t *testing.T) {
	t.Parallel()

	api := &fakeS3{}
	u := newUploaderWithAPI(api, "osdeploy-backups", config.TestTimeouts())

	require.NoError(t, u.UploadDir(context.Background(), writeBackupFixture(t)))
	assert.ElementsMatch(t, []string{
		"opensearch-certs-backup-20260823_143005/esnode.pem",
		"opensearch-certs-backup-20260823_143005/root-ca.pem",
	}, api.keys)
}

func TestUploadDirRetriesTransientErrors(t *testing.T) {
	t.Parallel()

	var failures atomic.Int32
	failures.Store(1)
	api := &fakeS3{fail: func(string) error {
		if failures.Add(-1) >= 0 {
			return errors.New("RequestTimeout")
		}
		return nil
	}}
	u := newUploaderWithAPI(api, "osdeploy-backups", config.TestTimeouts())

	require.NoError(t, u.UploadDir(context.Background(), writeBackupFixture(t)))
	assert.Greater(t, api.calls.Load(), int32(2), "first object needs a retry")
}

type apiError struct{ code string }

func (e *apiError) Error() string                 { return e.code }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.code }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

func TestUploadDirGivesUpOnMissingBucket(t *testing.T) {
	t.Parallel()

	api := &fakeS3{fail: func(string) error { return &apiError{code: "NoSuchBucket"} }}
	u := newUploaderWithAPI(api, "gone", config.TestTimeouts())

	err := u.UploadDir(context.Background(), writeBackupFixture(t))
	require.Error(t, err)
	assert.Equal(t, int32(1), api.calls.Load(), "fatal errors must not retry")
}
