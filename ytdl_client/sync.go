package ytdl_client

import (
	"context"
	"fmt"

	"github.com/isseis/go-ytdl-client/download_registry"
	"github.com/isseis/go-ytdl-client/progress_channel"
	"github.com/isseis/go-ytdl-client/session_bootstrap"
	"github.com/isseis/go-ytdl-client/ytdl_api"
)

// UpdateSource is a stream of status updates; *progress_channel.Channel in production.
type UpdateSource interface {
	Updates() <-chan progress_channel.StatusUpdate
	Err() error
}

// Sync is a bootstrapped session whose progress updates are being applied to
// the registry.
type Sync struct {
	*session_bootstrap.Result

	done chan struct{}
	err  error
}

// Done is closed once the consumer loop has stopped. It is closed right away
// when no progress channel could be opened.
func (s *Sync) Done() <-chan struct{} {
	return s.done
}

// Err returns why the consumer loop stopped. Only valid after Done is closed.
func (s *Sync) Err() error {
	return s.err
}

// Close stops the progress channel and waits for the consumer loop.
func (s *Sync) Close() {
	if s.Channel != nil {
		s.Channel.Close()
	}
	<-s.done
}

// Bootstrap runs the startup sequence and starts applying progress updates.
// It never fails; problems are reported through the notification queue and
// the log, and the returned Sync tells what was achieved.
func (c *Client) Bootstrap(ctx context.Context) *Sync {
	opts := []session_bootstrap.SequencerOption{
		session_bootstrap.WithLogger(c.logger),
		session_bootstrap.WithStreamEndpoint(c.streamBase, c.streamHTTP),
	}
	if c.openChannel != nil {
		opts = append(opts, session_bootstrap.WithChannelOpener(c.openChannel))
	}
	seq := session_bootstrap.New(c.api, c.identity, c.registry, c.state, opts...)
	result := seq.Run(ctx)

	s := &Sync{Result: result, done: make(chan struct{})}
	if result.Channel == nil {
		close(s.done)
		return s
	}
	go func() {
		defer close(s.done)
		s.err = c.Consume(ctx, result.Channel)
	}()
	return s
}

// Consume applies updates from src to the registry until src is exhausted or
// ctx is canceled. It must be the only consumer of src.
func (c *Client) Consume(ctx context.Context, src UpdateSource) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-src.Updates():
			if !ok {
				return src.Err()
			}
			c.applyUpdate(update)
		}
	}
}

func (c *Client) applyUpdate(update progress_channel.StatusUpdate) {
	before, known := c.registry.Get(update.MediaID)
	c.registry.ApplyStatusUpdate(patchFromUpdate(update))
	if !known {
		c.logger.Debug("Status update for unknown job", "media_id", update.MediaID, "status", update.Status)
		return
	}
	if update.Status == ytdl_api.StatusFailed && before.Status != ytdl_api.StatusFailed {
		c.state.Notices.Error(fmt.Sprintf("%s failed to download.", displayTitle(before)))
	}
}

func patchFromUpdate(u progress_channel.StatusUpdate) download_registry.StatusPatch {
	return download_registry.StatusPatch{
		MediaID:       u.MediaID,
		Status:        u.Status,
		Progress:      u.Progress,
		Filesize:      u.Filesize,
		FilesizeHuman: u.FilesizeHuman,
	}
}

func displayTitle(job ytdl_api.DownloadJob) string {
	if job.Title != "" {
		return job.Title
	}
	return string(job.MediaID)
}
