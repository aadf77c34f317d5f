package ytdl_api

import (
	"context"
	"errors"
	"sync"
)

// MockClient is a Client for tests. Each operation calls the matching XxxFunc
// when set and fails otherwise.
type MockClient struct {
	VersionFunc   func(ctx context.Context) (*VersionInfo, error)
	DownloadsFunc func(ctx context.Context) ([]DownloadJob, error)
	PreviewFunc   func(ctx context.Context, url string) (*Preview, error)
	EnqueueFunc   func(ctx context.Context, req EnqueueRequest) ([]DownloadJob, error)
	DeleteFunc    func(ctx context.Context, id MediaID) (*StatusResponse, error)
	RetryFunc     func(ctx context.Context, id MediaID) (*RetryResponse, error)
	FetchFunc     func(ctx context.Context, id MediaID) (*FileResponse, error)

	mu       sync.Mutex
	clientID string
	calls    []string
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

var errNotMocked = errors.New("mock: operation not configured")

func (m *MockClient) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

// Calls returns the names of the operations invoked so far, in order.
func (m *MockClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockClient) ClientID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clientID
}

func (m *MockClient) SetClientID(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clientID = id
}

func (m *MockClient) Version(ctx context.Context) (*VersionInfo, error) {
	m.record("Version")
	if m.VersionFunc == nil {
		return nil, errNotMocked
	}
	return m.VersionFunc(ctx)
}

func (m *MockClient) Downloads(ctx context.Context) ([]DownloadJob, error) {
	m.record("Downloads")
	if m.DownloadsFunc == nil {
		return nil, errNotMocked
	}
	return m.DownloadsFunc(ctx)
}

func (m *MockClient) Preview(ctx context.Context, url string) (*Preview, error) {
	m.record("Preview")
	if m.PreviewFunc == nil {
		return nil, errNotMocked
	}
	return m.PreviewFunc(ctx, url)
}

func (m *MockClient) Enqueue(ctx context.Context, req EnqueueRequest) ([]DownloadJob, error) {
	m.record("Enqueue")
	if m.EnqueueFunc == nil {
		return nil, errNotMocked
	}
	return m.EnqueueFunc(ctx, req)
}

func (m *MockClient) Delete(ctx context.Context, id MediaID) (*StatusResponse, error) {
	m.record("Delete")
	if m.DeleteFunc == nil {
		return nil, errNotMocked
	}
	return m.DeleteFunc(ctx, id)
}

func (m *MockClient) Retry(ctx context.Context, id MediaID) (*RetryResponse, error) {
	m.record("Retry")
	if m.RetryFunc == nil {
		return nil, errNotMocked
	}
	return m.RetryFunc(ctx, id)
}

func (m *MockClient) Fetch(ctx context.Context, id MediaID) (*FileResponse, error) {
	m.record("Fetch")
	if m.FetchFunc == nil {
		return nil, errNotMocked
	}
	return m.FetchFunc(ctx, id)
}
