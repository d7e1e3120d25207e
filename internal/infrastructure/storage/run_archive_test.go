package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tpa/backend/internal/domain/shared"
	"github.com/tpa/backend/internal/infrastructure/config"
	"go.uber.org/zap/zaptest"
)

const runID = "0b7e3c9a-5f1d-4a8e-9c2b-6d4f8e1a2b3c"

// fakeS3 answers path-style object requests from memory
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string // path -> content type
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		f.objects[r.URL.Path] = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	case http.MethodHead:
		if strings.Count(strings.Trim(r.URL.Path, "/"), "/") == 0 {
			w.WriteHeader(http.StatusOK) // bucket
			return
		}
		if _, ok := f.objects[r.URL.Path]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) contentType(path string) (string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[path], len(f.objects)
}

func newTestArchive(t *testing.T, endpoint string) *RunArchive {
	t.Helper()
	a, err := NewRunArchive(&config.StorageConfig{
		Endpoint:     endpoint,
		Bucket:       "tpa-runs",
		AccessKey:    "test-key",
		SecretKey:    "test-secret",
		UsePathStyle: true,
		Prefix:       "runs/",
	}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return a
}

func TestNewRunArchive_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.StorageConfig
		want string
	}{
		{"nil config", nil, "configuration is required"},
		{"missing bucket", &config.StorageConfig{AccessKey: "k", SecretKey: "s"}, "bucket is required"},
		{"missing access key", &config.StorageConfig{Bucket: "b", SecretKey: "s"}, "access key is required"},
		{"missing secret key", &config.StorageConfig{Bucket: "b", AccessKey: "k"}, "secret key is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRunArchive(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("defaults", func(t *testing.T) {
		a, err := NewRunArchive(&config.StorageConfig{Bucket: "b", AccessKey: "k", SecretKey: "s", Endpoint: "localhost:9000"})
		require.NoError(t, err)
		assert.Equal(t, "b", a.Bucket())
		assert.Equal(t, 15*time.Minute, a.presignExpiration)
	})

	t.Run("WithPresignExpiration", func(t *testing.T) {
		a, err := NewRunArchive(&config.StorageConfig{Bucket: "b", AccessKey: "k", SecretKey: "s"},
			WithPresignExpiration(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, time.Hour, a.presignExpiration)
	})
}

func TestRunArchive_Key(t *testing.T) {
	a := newTestArchive(t, "http://localhost:9000")

	key, err := a.Key(strings.ToUpper(runID))
	require.NoError(t, err)
	assert.Equal(t, "runs/"+runID+".json", key)

	_, err = a.Key("../etc/passwd")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestRunArchive_Presign(t *testing.T) {
	a := newTestArchive(t, "http://localhost:9000")

	link, expiresAt, err := a.presign(context.Background(), "runs/"+runID+".json", time.Hour)
	require.NoError(t, err)
	assert.Contains(t, link, "localhost:9000")
	assert.Contains(t, link, "tpa-runs")
	assert.Contains(t, link, runID)
	assert.Contains(t, link, "X-Amz-Signature")
	assert.True(t, expiresAt.After(time.Now().Add(59*time.Minute)))
}

func TestRunArchive_StoreAndDownload(t *testing.T) {
	s3 := &fakeS3{objects: map[string]string{}}
	srv := httptest.NewServer(s3)
	t.Cleanup(srv.Close)
	a := newTestArchive(t, srv.URL)
	ctx := context.Background()

	require.NoError(t, a.Ping(ctx))
	require.NoError(t, a.EnsureBucket(ctx))

	t.Run("missing run", func(t *testing.T) {
		_, _, err := a.DownloadURL(ctx, runID)
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("stored run", func(t *testing.T) {
		require.NoError(t, a.Store(ctx, runID, []byte(`{"runId":"`+runID+`"}`)))
		ct, _ := s3.contentType("/tpa-runs/runs/" + runID + ".json")
		assert.Equal(t, "application/json", ct)

		link, _, err := a.DownloadURL(ctx, runID)
		require.NoError(t, err)
		assert.Contains(t, link, srv.URL)
		assert.Contains(t, link, runID)
	})

	t.Run("invalid id is not uploaded", func(t *testing.T) {
		err := a.Store(ctx, "latest", []byte(`{}`))
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		_, n := s3.contentType("")
		assert.Equal(t, 1, n)
	})
}
