// Package warm_cache keeps the last full job list on disk so the dashboard can
// show something before the backend answers. It is never merged with live
// data: the registry is seeded from it once and every ReplaceAll overwrites it.
package warm_cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/isseis/go-ytdl-client/ytdl_api"
)

const (
	// StorageKey is the fixed local storage key of the snapshot.
	StorageKey = "downloads"

	CACHE_VERSION = 1
	CACHE_MAGIC   = "YTDL_CLIENT_DOWNLOADS"
)

// KeyValueStore is the subset of local_storage.Store used here.
type KeyValueStore interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
}

// Cache reads and writes the snapshot.
type Cache struct {
	kv  KeyValueStore
	now func() time.Time
}

// New returns a Cache backed by kv.
func New(kv KeyValueStore) *Cache {
	return &Cache{kv: kv, now: time.Now}
}

// jsonHeader is used for marshaling/unmarshaling metadata of the snapshot.
type jsonHeader struct {
	Version int    `json:"version"`
	Magic   string `json:"magic"`
	Created string `json:"created"`
}

// validate checks that the JSON header matches the expected version and magic string.
func (hdr *jsonHeader) validate() error {
	if hdr.Version != CACHE_VERSION {
		return fmt.Errorf("unsupported version: %d", hdr.Version)
	}
	if hdr.Magic != CACHE_MAGIC {
		return fmt.Errorf("invalid magic: %s", hdr.Magic)
	}
	return nil
}

// jsonCachedJob is one job as stored on disk. Durations are kept in
// milliseconds independent of the backend's wire unit.
type jsonCachedJob struct {
	MediaID       ytdl_api.MediaID        `json:"media_id"`
	Title         string                  `json:"title"`
	URL           string                  `json:"url"`
	ThumbnailURL  string                  `json:"thumbnail_url,omitempty"`
	DurationMs    int64                   `json:"duration_ms"`
	Status        ytdl_api.DownloadStatus `json:"status"`
	Progress      int                     `json:"progress"`
	Filesize      int64                   `json:"filesize,omitempty"`
	FilesizeHuman string                  `json:"filesize_hr,omitempty"`
	MediaFormat   ytdl_api.MediaFormat    `json:"media_format,omitempty"`
	VideoStreamID string                  `json:"video_stream_id,omitempty"`
	AudioStreamID string                  `json:"audio_stream_id,omitempty"`
	IsAudio       bool                    `json:"is_audio,omitempty"`
}

type jsonSnapshot struct {
	Header jsonHeader      `json:"header"`
	Items  []jsonCachedJob `json:"items"`
}

func fromDownloadJob(j ytdl_api.DownloadJob) jsonCachedJob {
	return jsonCachedJob{
		MediaID:       j.MediaID,
		Title:         j.Title,
		URL:           j.URL,
		ThumbnailURL:  j.ThumbnailURL,
		DurationMs:    j.Duration.Milliseconds(),
		Status:        j.Status,
		Progress:      j.Progress,
		Filesize:      j.Filesize,
		FilesizeHuman: j.FilesizeHuman,
		MediaFormat:   j.MediaFormat,
		VideoStreamID: j.VideoStreamID,
		AudioStreamID: j.AudioStreamID,
		IsAudio:       j.IsAudio,
	}
}

func (j *jsonCachedJob) toDownloadJob() ytdl_api.DownloadJob {
	return ytdl_api.DownloadJob{
		MediaID:       j.MediaID,
		Title:         j.Title,
		URL:           j.URL,
		ThumbnailURL:  j.ThumbnailURL,
		Duration:      time.Duration(j.DurationMs) * time.Millisecond,
		Status:        j.Status,
		Progress:      j.Progress,
		Filesize:      j.Filesize,
		FilesizeHuman: j.FilesizeHuman,
		MediaFormat:   j.MediaFormat,
		VideoStreamID: j.VideoStreamID,
		AudioStreamID: j.AudioStreamID,
		IsAudio:       j.IsAudio,
	}
}

func (j *jsonCachedJob) validate() error {
	if j.MediaID == "" {
		return fmt.Errorf("cached job without media id")
	}
	if _, err := ytdl_api.ParseDownloadStatus(string(j.Status)); err != nil {
		return fmt.Errorf("cached job %s: %w", j.MediaID, err)
	}
	return nil
}

// Save overwrites the snapshot with jobs.
func (c *Cache) Save(jobs []ytdl_api.DownloadJob) error {
	var buf bytes.Buffer
	if err := saveToWriter(&buf, jobs, c.now()); err != nil {
		return err
	}
	if err := c.kv.Set(StorageKey, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to save warm cache: %w", err)
	}
	return nil
}

// Load returns the cached jobs in their saved order, or nil when nothing has
// been cached yet. A corrupt or foreign snapshot is reported as an error.
func (c *Cache) Load() ([]ytdl_api.DownloadJob, error) {
	data, ok, err := c.kv.Get(StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load warm cache: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return loadFromReader(bytes.NewReader(data))
}

func loadFromReader(r io.Reader) ([]ytdl_api.DownloadJob, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	var snapshot jsonSnapshot
	if err := json.Unmarshal(content, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode warm cache: %w", err)
	}
	if err := snapshot.Header.validate(); err != nil {
		return nil, fmt.Errorf("invalid warm cache header: %w", err)
	}

	jobs := make([]ytdl_api.DownloadJob, 0, len(snapshot.Items))
	for i := range snapshot.Items {
		if err := snapshot.Items[i].validate(); err != nil {
			return nil, err
		}
		jobs = append(jobs, snapshot.Items[i].toDownloadJob())
	}
	return jobs, nil
}

func saveToWriter(w io.Writer, jobs []ytdl_api.DownloadJob, created time.Time) error {
	snapshot := jsonSnapshot{
		Header: jsonHeader{
			Version: CACHE_VERSION,
			Magic:   CACHE_MAGIC,
			Created: created.Format(time.RFC3339),
		},
		Items: make([]jsonCachedJob, 0, len(jobs)),
	}
	for _, j := range jobs {
		snapshot.Items = append(snapshot.Items, fromDownloadJob(j))
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snapshot); err != nil {
		return fmt.Errorf("failed to encode warm cache: %w", err)
	}
	return nil
}
