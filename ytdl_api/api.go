package ytdl_api

import (
	"fmt"
	"time"
)

// MediaID identifies a download job on the backend.
type MediaID string

// DownloadStatus is the lifecycle state of a download job.
type DownloadStatus string

const StatusStarted = DownloadStatus("started")
const StatusDownloading = DownloadStatus("downloading")
const StatusConverting = DownloadStatus("converting")
const StatusFinished = DownloadStatus("finished")
const StatusDownloaded = DownloadStatus("downloaded")
const StatusDeleted = DownloadStatus("deleted")
const StatusFailed = DownloadStatus("failed")

func (s DownloadStatus) isValid() bool {
	switch s {
	case StatusStarted, StatusDownloading, StatusConverting, StatusFinished,
		StatusDownloaded, StatusDeleted, StatusFailed:
		return true
	default:
		return false
	}
}

// InProgress reports whether the job is still being processed by the backend,
// which is when its progress value is meaningful.
func (s DownloadStatus) InProgress() bool {
	return s == StatusDownloading || s == StatusConverting
}

// Fetchable reports whether the file can be retrieved from the backend.
func (s DownloadStatus) Fetchable() bool {
	return s == StatusFinished || s == StatusDownloaded
}

// ParseDownloadStatus converts a wire value into a DownloadStatus.
func ParseDownloadStatus(s string) (DownloadStatus, error) {
	status := DownloadStatus(s)
	if !status.isValid() {
		return "", DecodeError(fmt.Sprintf("unknown download status: %q", s))
	}
	return status, nil
}

// MediaFormat is the output container requested for a download.
type MediaFormat string

const FormatMP4 = MediaFormat("mp4")
const FormatMP3 = MediaFormat("mp3")
const FormatWAV = MediaFormat("wav")

// IsAudio reports whether the format is audio only.
func (f MediaFormat) IsAudio() bool {
	return f == FormatMP3 || f == FormatWAV
}

// DurationUnit selects how durations are encoded on the wire.
type DurationUnit string

const DurationSeconds = DurationUnit("seconds")
const DurationMilliseconds = DurationUnit("milliseconds")

func (u DurationUnit) isValid() bool {
	return u == DurationSeconds || u == DurationMilliseconds
}

// ParseDurationUnit converts a configuration value into a DurationUnit.
func ParseDurationUnit(s string) (DurationUnit, error) {
	if s == "" {
		return DurationSeconds, nil
	}
	unit := DurationUnit(s)
	if !unit.isValid() {
		return "", fmt.Errorf("unknown duration unit %q (want %q or %q)", s, DurationSeconds, DurationMilliseconds)
	}
	return unit, nil
}

func (u DurationUnit) toDuration(v float64) time.Duration {
	if u == DurationMilliseconds {
		return time.Duration(v * float64(time.Millisecond))
	}
	return time.Duration(v * float64(time.Second))
}

// DownloadJob is one download known to the backend.
type DownloadJob struct {
	MediaID       MediaID        `json:"mediaId"`
	Title         string         `json:"title"`
	URL           string         `json:"url"`
	ThumbnailURL  string         `json:"thumbnailUrl"`
	Duration      time.Duration  `json:"duration"`
	Status        DownloadStatus `json:"status"`
	Progress      int            `json:"progress"`
	Filesize      int64          `json:"filesize,omitempty"`
	FilesizeHuman string         `json:"filesizeHr,omitempty"`
	MediaFormat   MediaFormat    `json:"mediaFormat,omitempty"`
	VideoStreamID string         `json:"videoStreamId,omitempty"`
	AudioStreamID string         `json:"audioStreamId,omitempty"`
	IsAudio       bool           `json:"isAudio,omitempty"`
}

// Kind returns "Audio" or "Video" for user facing messages.
func (j DownloadJob) Kind() string {
	if j.IsAudio || j.MediaFormat.IsAudio() {
		return "Audio"
	}
	return "Video"
}

// jsonDownloadJob is a download job as sent by the backend
type jsonDownloadJob struct {
	MediaID       MediaID `json:"mediaId"`
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	ThumbnailURL  string  `json:"thumbnailUrl"`
	Duration      float64 `json:"duration"`
	Status        string  `json:"status"`
	Progress      int     `json:"progress"`
	Filesize      *int64  `json:"filesize"`
	FilesizeHuman string  `json:"filesizeHr"`
	MediaFormat   string  `json:"mediaFormat"`
	VideoStreamID *string `json:"videoStreamId"`
	AudioStreamID *string `json:"audioStreamId"`
	IsAudio       bool    `json:"isAudio"`
}

func (j *jsonDownloadJob) validate() error {
	if j.MediaID == "" {
		return DecodeError("download without mediaId")
	}
	if j.Status != "" && !DownloadStatus(j.Status).isValid() {
		return DecodeError(fmt.Sprintf("invalid status %q for %s", j.Status, j.MediaID))
	}
	if j.Progress < 0 || j.Progress > 100 {
		return DecodeError(fmt.Sprintf("invalid progress %d for %s", j.Progress, j.MediaID))
	}
	if j.Duration < 0 {
		return DecodeError(fmt.Sprintf("invalid duration %v for %s", j.Duration, j.MediaID))
	}
	if j.Filesize != nil && *j.Filesize < 0 {
		return DecodeError(fmt.Sprintf("invalid filesize %d for %s", *j.Filesize, j.MediaID))
	}
	return nil
}

// toDownloadJob converts the wire form; a missing status means the job was
// just accepted.
func (j *jsonDownloadJob) toDownloadJob(unit DurationUnit) DownloadJob {
	job := DownloadJob{
		MediaID:       j.MediaID,
		Title:         j.Title,
		URL:           j.URL,
		ThumbnailURL:  j.ThumbnailURL,
		Duration:      unit.toDuration(j.Duration),
		Status:        DownloadStatus(j.Status),
		Progress:      j.Progress,
		FilesizeHuman: j.FilesizeHuman,
		MediaFormat:   MediaFormat(j.MediaFormat),
		IsAudio:       j.IsAudio,
	}
	if job.Status == "" {
		job.Status = StatusStarted
	}
	if j.Filesize != nil {
		job.Filesize = *j.Filesize
	}
	if j.VideoStreamID != nil {
		job.VideoStreamID = *j.VideoStreamID
	}
	if j.AudioStreamID != nil {
		job.AudioStreamID = *j.AudioStreamID
	}
	return job
}

// jsonDownloadsResponse is the body of every endpoint returning the job list
type jsonDownloadsResponse struct {
	Downloads []jsonDownloadJob `json:"downloads"`
}

func (r *jsonDownloadsResponse) validate() error {
	for i := range r.Downloads {
		if err := r.Downloads[i].validate(); err != nil {
			return err
		}
	}
	return nil
}

func (r *jsonDownloadsResponse) toDownloadJobs(unit DurationUnit) []DownloadJob {
	jobs := make([]DownloadJob, len(r.Downloads))
	for i := range r.Downloads {
		jobs[i] = r.Downloads[i].toDownloadJob(unit)
	}
	return jobs
}

// StatusResponse is returned by delete and, on some backends, retry.
type StatusResponse struct {
	MediaID MediaID
	Status  DownloadStatus
}

type jsonStatusResponse struct {
	MediaID MediaID `json:"mediaId"`
	Status  string  `json:"status"`
}

func (r *jsonStatusResponse) validate() error {
	if r.MediaID == "" {
		return DecodeError("status response without mediaId")
	}
	if !DownloadStatus(r.Status).isValid() {
		return DecodeError(fmt.Sprintf("invalid status %q for %s", r.Status, r.MediaID))
	}
	return nil
}

func (r *jsonStatusResponse) toStatusResponse() *StatusResponse {
	return &StatusResponse{MediaID: r.MediaID, Status: DownloadStatus(r.Status)}
}
