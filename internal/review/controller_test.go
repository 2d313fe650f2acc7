package review

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexsuite/review-cli/internal/model"
	"github.com/lexsuite/review-cli/internal/resilience"
	"github.com/lexsuite/review-cli/pkg/reviewapi"
)

type mockClient struct {
	mu       sync.Mutex
	calls    []string
	getCalls int

	uploadFn func(filename, title string) (*model.UploadResponse, error)
	startFn  func(contractID string) (*model.Review, error)
	getFn    func(call int) (*model.Review, error)
}

func (m *mockClient) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *mockClient) callNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockClient) UploadContract(_ context.Context, file io.Reader, filename, title string) (*model.UploadResponse, error) {
	m.record("upload")
	_, _ = io.Copy(io.Discard, file)
	if m.uploadFn != nil {
		return m.uploadFn(filename, title)
	}
	return &model.UploadResponse{Success: true, ContractID: "c1"}, nil
}

func (m *mockClient) StartReview(_ context.Context, contractID string) (*model.Review, error) {
	m.record("start")
	if m.startFn != nil {
		return m.startFn(contractID)
	}
	return &model.Review{ID: "r1", ContractID: contractID, Status: model.ReviewPending}, nil
}

func (m *mockClient) GetReview(_ context.Context, reviewID string) (*model.Review, error) {
	m.record("get")
	m.mu.Lock()
	m.getCalls++
	call := m.getCalls
	m.mu.Unlock()
	if m.getFn != nil {
		return m.getFn(call)
	}
	return &model.Review{ID: reviewID, Status: model.ReviewCompleted}, nil
}

func (m *mockClient) DownloadReviewedDocument(context.Context, string) ([]byte, error) {
	m.record("download_doc")
	return nil, errors.New("not implemented")
}

func (m *mockClient) DownloadReport(context.Context, string) ([]byte, error) {
	m.record("download_report")
	return nil, errors.New("not implemented")
}

func (m *mockClient) ListContracts(context.Context) ([]model.Contract, error) {
	m.record("list_contracts")
	return nil, errors.New("not implemented")
}

var _ reviewapi.Client = (*mockClient)(nil)

func writeTempDocx(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{'x'}, size), 0o644))
	return path
}

func fastConfig() Config {
	return Config{
		MaxFileSize:     10 * 1024 * 1024,
		PollInterval:    5 * time.Millisecond,
		PollTimeout:     time.Second,
		MaxPollFailures: 3,
	}
}

func TestValidateFile(t *testing.T) {
	t.Parallel()

	t.Run("rejects non docx", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "contract.pdf")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

		err := ValidateFile(path, 1024)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Reason, ".pdf")
	})

	t.Run("rejects oversize", func(t *testing.T) {
		t.Parallel()
		path := writeTempDocx(t, "big.docx", 2048)

		err := ValidateFile(path, 1024)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Reason, "limit")
	})

	t.Run("accepts docx at limit", func(t *testing.T) {
		t.Parallel()
		path := writeTempDocx(t, "ok.docx", 1024)
		assert.NoError(t, ValidateFile(path, 1024))
	})

	t.Run("case insensitive extension", func(t *testing.T) {
		t.Parallel()
		path := writeTempDocx(t, "UPPER.DOCX", 10)
		assert.NoError(t, ValidateFile(path, 1024))
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		err := ValidateFile(filepath.Join(t.TempDir(), "gone.docx"), 1024)
		require.Error(t, err)
	})
}

func TestController_HappyPath(t *testing.T) {
	t.Parallel()

	client := &mockClient{
		getFn: func(call int) (*model.Review, error) {
			if call == 1 {
				return &model.Review{ID: "r1", Status: model.ReviewProcessing}, nil
			}
			return &model.Review{
				ID:     "r1",
				Status: model.ReviewCompleted,
				Result: &model.ReviewResult{
					Issues: []model.Issue{{Problem: "缺少违约责任条款", Severity: model.SeverityHigh}},
				},
			}, nil
		},
	}

	c := New(client, fastConfig())
	defer c.Close()

	path := writeTempDocx(t, "contract.docx", 9*1024*1024)
	require.NoError(t, c.Upload(context.Background(), path, ""))

	snap, err := c.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, snap.State)
	assert.False(t, snap.IsUploading)
	assert.Equal(t, "contract", snap.Title, "title defaults to the file name without extension")
	require.NotNil(t, snap.Review)
	require.NotNil(t, snap.Review.Result)
	assert.Len(t, snap.Review.Result.Issues, 1)
	assert.NoError(t, snap.Err)

	calls := client.callNames()
	require.GreaterOrEqual(t, len(calls), 4)
	assert.Equal(t, []string{"upload", "start", "get", "get"}, calls[:4])

	// Polling must stop after the terminal state.
	before := len(client.callNames())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, len(client.callNames()))
}

func TestController_UploadClientError(t *testing.T) {
	t.Parallel()

	client := &mockClient{
		uploadFn: func(string, string) (*model.UploadResponse, error) {
			return nil, errors.New("connection refused")
		},
	}
	c := New(client, fastConfig())
	defer c.Close()

	path := writeTempDocx(t, "contract.docx", 128)
	err := c.Upload(context.Background(), path, "lease")
	require.Error(t, err)

	snap := c.Snapshot()
	assert.Equal(t, StateNone, snap.State)
	assert.False(t, snap.IsUploading)
	assert.Error(t, snap.Err)
	assert.NotContains(t, client.callNames(), "start")
}

func TestController_UploadRejected(t *testing.T) {
	t.Parallel()

	client := &mockClient{
		uploadFn: func(string, string) (*model.UploadResponse, error) {
			return &model.UploadResponse{Success: false, Message: "contract already exists"}, nil
		},
	}
	c := New(client, fastConfig())
	defer c.Close()

	path := writeTempDocx(t, "contract.docx", 128)
	err := c.Upload(context.Background(), path, "lease")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contract already exists")
	assert.NotContains(t, client.callNames(), "start")
	assert.Equal(t, StateNone, c.Snapshot().State)
}

func TestController_StartReviewError(t *testing.T) {
	t.Parallel()

	client := &mockClient{
		startFn: func(string) (*model.Review, error) {
			return nil, errors.New("backend unavailable")
		},
	}
	c := New(client, fastConfig())
	defer c.Close()

	path := writeTempDocx(t, "contract.docx", 128)
	err := c.Upload(context.Background(), path, "lease")
	require.Error(t, err)

	snap := c.Snapshot()
	assert.Equal(t, StateNone, snap.State)
	assert.False(t, snap.IsUploading)
	assert.NotContains(t, client.callNames(), "get")
}

func TestController_ReviewFails(t *testing.T) {
	t.Parallel()

	client := &mockClient{
		getFn: func(int) (*model.Review, error) {
			return &model.Review{ID: "r1", Status: model.ReviewFailed, ErrorMessage: "模型服务不可用"}, nil
		},
	}
	c := New(client, fastConfig())
	defer c.Close()

	path := writeTempDocx(t, "contract.docx", 128)
	require.NoError(t, c.Upload(context.Background(), path, "lease"))

	snap, err := c.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateFailed, snap.State)
	require.Error(t, snap.Err)
	assert.Contains(t, snap.Err.Error(), "模型服务不可用")
}

func TestController_Timeout(t *testing.T) {
	t.Parallel()

	client := &mockClient{
		getFn: func(int) (*model.Review, error) {
			return &model.Review{ID: "r1", Status: model.ReviewProcessing}, nil
		},
	}
	cfg := fastConfig()
	cfg.PollTimeout = 30 * time.Millisecond

	c := New(client, cfg)
	defer c.Close()

	path := writeTempDocx(t, "contract.docx", 128)
	require.NoError(t, c.Upload(context.Background(), path, "lease"))

	snap, err := c.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateTimedOut, snap.State)
	assert.ErrorIs(t, snap.Err, ErrPollTimeout)

	before := len(client.callNames())
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, len(client.callNames()), "no polls after timeout")
}

func TestController_TransientFailuresTolerated(t *testing.T) {
	t.Parallel()

	client := &mockClient{
		getFn: func(call int) (*model.Review, error) {
			if call <= 2 {
				return nil, resilience.NewTransientError(errors.New("bad gateway"), 502)
			}
			return &model.Review{ID: "r1", Status: model.ReviewCompleted}, nil
		},
	}
	c := New(client, fastConfig())
	defer c.Close()

	path := writeTempDocx(t, "contract.docx", 128)
	require.NoError(t, c.Upload(context.Background(), path, "lease"))

	snap, err := c.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, snap.State)
	assert.Equal(t, 3, client.getCalls)
}

func TestController_TransientFailureLimit(t *testing.T) {
	t.Parallel()

	client := &mockClient{
		getFn: func(int) (*model.Review, error) {
			return nil, &reviewapi.APIError{StatusCode: 503, Message: "service unavailable"}
		},
	}
	c := New(client, fastConfig())
	defer c.Close()

	path := writeTempDocx(t, "contract.docx", 128)
	require.NoError(t, c.Upload(context.Background(), path, "lease"))

	snap, err := c.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateFailed, snap.State)
	require.Error(t, snap.Err)
	assert.Equal(t, 3, client.getCalls, "gives up after MaxPollFailures consecutive failures")
}

func TestController_HardPollErrorFailsImmediately(t *testing.T) {
	t.Parallel()

	client := &mockClient{
		getFn: func(int) (*model.Review, error) {
			return nil, &reviewapi.APIError{StatusCode: 404, Message: "review not found"}
		},
	}
	c := New(client, fastConfig())
	defer c.Close()

	path := writeTempDocx(t, "contract.docx", 128)
	require.NoError(t, c.Upload(context.Background(), path, "lease"))

	snap, err := c.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, 1, client.getCalls)
}

func TestController_NoOverlappingPolls(t *testing.T) {
	t.Parallel()

	var inFlight, maxInFlight atomic.Int32
	client := &mockClient{
		getFn: func(call int) (*model.Review, error) {
			n := inFlight.Add(1)
			for {
				m := maxInFlight.Load()
				if n <= m || maxInFlight.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			inFlight.Add(-1)
			if call >= 5 {
				return &model.Review{ID: "r1", Status: model.ReviewCompleted}, nil
			}
			return &model.Review{ID: "r1", Status: model.ReviewProcessing}, nil
		},
	}

	cfg := fastConfig()
	cfg.PollInterval = time.Millisecond

	c := New(client, cfg)
	defer c.Close()

	path := writeTempDocx(t, "contract.docx", 128)
	require.NoError(t, c.Upload(context.Background(), path, "lease"))

	_, err := c.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestController_ResetIdempotent(t *testing.T) {
	t.Parallel()

	c := New(&mockClient{}, fastConfig())
	c.Reset()
	c.Reset()
	c.Reset()

	snap := c.Snapshot()
	assert.Equal(t, StateNone, snap.State)
	assert.Nil(t, snap.Review)
	assert.NoError(t, snap.Err)
}

func TestController_ResetDiscardsInFlightResponse(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	client := &mockClient{
		getFn: func(int) (*model.Review, error) {
			once.Do(func() { close(entered) })
			<-release
			return &model.Review{ID: "r1", Status: model.ReviewCompleted}, nil
		},
	}
	c := New(client, fastConfig())

	path := writeTempDocx(t, "contract.docx", 128)
	require.NoError(t, c.Upload(context.Background(), path, "lease"))

	<-entered
	c.Reset()
	close(release)

	time.Sleep(20 * time.Millisecond)
	snap := c.Snapshot()
	assert.Equal(t, StateNone, snap.State, "completed response after reset is discarded")
	assert.Nil(t, snap.Review)
}

func TestController_NotifyObservesLifecycle(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var states []State
	var sawUploading bool

	client := &mockClient{}
	c := New(client, fastConfig(), WithNotify(func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s.State)
		if s.IsUploading {
			sawUploading = true
		}
	}))
	defer c.Close()

	path := writeTempDocx(t, "contract.docx", 128)
	require.NoError(t, c.Upload(context.Background(), path, "lease"))

	snap, err := c.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateCompleted, snap.State)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, sawUploading)
	assert.Contains(t, states, StatePolling)
	assert.Equal(t, StateCompleted, states[len(states)-1])
}

func TestController_UploadAfterTerminalStartsFresh(t *testing.T) {
	t.Parallel()

	client := &mockClient{}
	c := New(client, fastConfig())
	defer c.Close()

	path := writeTempDocx(t, "contract.docx", 128)
	require.NoError(t, c.Upload(context.Background(), path, "first"))
	_, err := c.Wait(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.Upload(context.Background(), path, "second"))
	snap, err := c.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, snap.State)
	assert.Equal(t, "second", snap.Title)
}
