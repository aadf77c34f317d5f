package ytdl_api

import "context"

// Client is the set of backend operations used by the rest of the application.
// *Session implements it; MockClient is a test double.
type Client interface {
	ClientID() string
	SetClientID(id string)
	Version(ctx context.Context) (*VersionInfo, error)
	Downloads(ctx context.Context) ([]DownloadJob, error)
	Preview(ctx context.Context, url string) (*Preview, error)
	Enqueue(ctx context.Context, req EnqueueRequest) ([]DownloadJob, error)
	Delete(ctx context.Context, id MediaID) (*StatusResponse, error)
	Retry(ctx context.Context, id MediaID) (*RetryResponse, error)
	Fetch(ctx context.Context, id MediaID) (*FileResponse, error)
}

var _ Client = (*Session)(nil)
var _ Client = (*MockClient)(nil)
