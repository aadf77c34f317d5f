package ytdl_client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/isseis/go-ytdl-client/download_registry"
	"github.com/isseis/go-ytdl-client/ytdl_api"
)

const (
	fetchDirPerm  = 0755
	fetchFilePerm = 0644
)

func validationError(format string, args ...any) error {
	return &ytdl_api.ValidationError{
		Status:   http.StatusUnprocessableEntity,
		Messages: []string{fmt.Sprintf(format, args...)},
	}
}

// Candidate returns the preview waiting to be enqueued, or nil.
func (c *Client) Candidate() *ytdl_api.Preview {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.candidate
}

// DiscardCandidate drops the pending preview.
func (c *Client) DiscardCandidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.candidate = nil
}

// Preview looks up url and makes the result the pending candidate. Any
// previous candidate is discarded first, even when the lookup fails.
func (c *Client) Preview(ctx context.Context, url string) (*ytdl_api.Preview, error) {
	defer c.state.Loading.Hold()()
	c.DiscardCandidate()

	preview, err := c.api.Preview(ctx, url)
	if err != nil {
		return nil, c.fail("Preview", err)
	}
	c.mu.Lock()
	c.candidate = preview
	c.mu.Unlock()
	c.logger.Debug("Preview loaded", "url", url, "title", preview.Title)
	return preview, nil
}

// EnqueueOptions selects what to download from the pending candidate.
type EnqueueOptions struct {
	VideoStreamID string
	AudioStreamID string
	MediaFormat   ytdl_api.MediaFormat
}

// DefaultEnqueueOptions picks the first offered streams and format of p.
// Audio formats only get an audio stream.
func DefaultEnqueueOptions(p *ytdl_api.Preview) EnqueueOptions {
	var opts EnqueueOptions
	if len(p.MediaFormats) > 0 {
		opts.MediaFormat = p.MediaFormats[0]
	}
	if len(p.AudioStreams) > 0 {
		opts.AudioStreamID = p.AudioStreams[0].ID
	}
	if len(p.VideoStreams) > 0 && !opts.MediaFormat.IsAudio() {
		opts.VideoStreamID = p.VideoStreams[0].ID
	}
	return opts
}

func (o EnqueueOptions) validateAgainst(p *ytdl_api.Preview) error {
	if p == nil {
		return validationError("Preview a URL before starting a download.")
	}
	if o.VideoStreamID == "" && o.AudioStreamID == "" {
		return validationError("Video or/and audio stream id should be specified for download.")
	}
	if o.VideoStreamID != "" && !p.HasStream(o.VideoStreamID, false) {
		return validationError("Unknown video stream %q.", o.VideoStreamID)
	}
	if o.AudioStreamID != "" && !p.HasStream(o.AudioStreamID, true) {
		return validationError("Unknown audio stream %q.", o.AudioStreamID)
	}
	if o.MediaFormat == "" {
		return validationError("Media format is required.")
	}
	if len(p.MediaFormats) > 0 && !p.OffersFormat(o.MediaFormat) {
		return validationError("Media format %q is not available.", o.MediaFormat)
	}
	return nil
}

// Enqueue submits the pending candidate with the selected options. On success
// the registry is replaced by the returned list and the candidate discarded.
func (c *Client) Enqueue(ctx context.Context, opts EnqueueOptions) error {
	defer c.state.Loading.Hold()()
	candidate := c.Candidate()
	if err := opts.validateAgainst(candidate); err != nil {
		return c.fail("Enqueue", err)
	}

	jobs, err := c.api.Enqueue(ctx, ytdl_api.EnqueueRequest{
		URL:           candidate.URL,
		VideoStreamID: opts.VideoStreamID,
		AudioStreamID: opts.AudioStreamID,
		MediaFormat:   opts.MediaFormat,
	})
	if err != nil {
		return c.fail("Enqueue", err)
	}
	c.registry.ReplaceAll(jobs)

	c.mu.Lock()
	if c.candidate == candidate {
		c.candidate = nil
	}
	c.mu.Unlock()
	c.logger.Info("Download enqueued", "url", candidate.URL, "format", opts.MediaFormat)
	return nil
}

// Delete removes the file of a job on the backend. The job leaves the
// registry only when the backend confirms the deletion.
func (c *Client) Delete(ctx context.Context, id ytdl_api.MediaID) error {
	defer c.state.Loading.Hold()()
	job, known := c.registry.Get(id)
	if !known {
		job = ytdl_api.DownloadJob{MediaID: id}
	}

	res, err := c.api.Delete(ctx, id)
	if err != nil {
		return c.fail("Delete", err)
	}
	target := res.MediaID
	if target == "" {
		target = id
	}
	c.registry.ApplyDelete(target, res.Status)

	if res.Status == ytdl_api.StatusDeleted {
		c.state.Notices.Success(fmt.Sprintf("%s file \"%s\" was successfully deleted.", job.Kind(), displayTitle(job)))
		c.logger.Info("Download deleted", "media_id", target)
		return nil
	}
	c.state.Notices.Error(fmt.Sprintf("%s file \"%s\" could not be deleted.", job.Kind(), displayTitle(job)))
	c.logger.Info("Delete not confirmed", "media_id", target, "status", res.Status)
	return nil
}

// Retry restarts a failed job and applies whichever answer the backend gives.
func (c *Client) Retry(ctx context.Context, id ytdl_api.MediaID) error {
	defer c.state.Loading.Hold()()
	res, err := c.api.Retry(ctx, id)
	if err != nil {
		return c.fail("Retry", err)
	}
	switch {
	case res.Downloads != nil:
		c.registry.ReplaceAll(res.Downloads)
	case res.Status != nil:
		c.registry.ApplyStatusUpdate(download_registry.StatusPatch{
			MediaID: res.Status.MediaID,
			Status:  res.Status.Status,
		})
	}
	c.logger.Info("Download retried", "media_id", id)
	return nil
}

// ProgressFunc wraps the body of a fetched file, e.g. to draw a progress bar.
// total is -1 when the size is unknown.
type ProgressFunc func(name string, total int64, r io.Reader) io.Reader

// FetchOption configures Fetch.
type FetchOption func(*fetchOptions)

type fetchOptions struct {
	dir      string
	progress ProgressFunc
}

// WithFetchDir saves into dir instead of the client's download directory.
func WithFetchDir(dir string) FetchOption {
	return func(o *fetchOptions) {
		o.dir = dir
	}
}

// WithProgress reports bytes as they are written.
func WithProgress(fn ProgressFunc) FetchOption {
	return func(o *fetchOptions) {
		o.progress = fn
	}
}

// Fetch downloads the finished file of a job and returns the saved path.
// An existing file is never overwritten; a numbered name is used instead.
func (c *Client) Fetch(ctx context.Context, id ytdl_api.MediaID, opts ...FetchOption) (string, error) {
	defer c.state.Loading.Hold()()
	o := fetchOptions{dir: c.downloadDir}
	for _, opt := range opts {
		opt(&o)
	}

	if job, ok := c.registry.Get(id); ok && !job.Status.Fetchable() {
		return "", c.fail("Fetch", validationError("%s is not ready to be fetched (%s).", displayTitle(job), job.Status))
	}

	file, err := c.api.Fetch(ctx, id)
	if err != nil {
		return "", c.fail("Fetch", err)
	}
	defer file.Body.Close()

	path, err := c.freePath(filepath.Join(o.dir, file.Filename))
	if err != nil {
		return "", c.fail("Fetch", err)
	}
	var body io.Reader = file.Body
	if o.progress != nil {
		body = o.progress(filepath.Base(path), file.ContentLength, body)
	}
	n, err := c.fs.CreateFile(path, body, fetchDirPerm, fetchFilePerm)
	if err != nil {
		return "", c.fail("Fetch", err)
	}
	c.logger.Info("File fetched", "media_id", id, "path", path, "bytes", n)
	return path, nil
}

// freePath returns path, or "name (N).ext" for the first N that is not taken.
func (c *Client) freePath(path string) (string, error) {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	candidate := path
	for i := 1; ; i++ {
		exists, err := c.fs.Exists(candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
	}
}
