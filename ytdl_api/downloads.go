package ytdl_api

import (
	"context"
	"encoding/json"
	"net/http"
)

// VersionInfo describes the backend and, on first contact, the identity it issued.
type VersionInfo struct {
	APIVersion       string
	YoutubeDLVersion string
	ClientID         string
	MediaFormats     []MediaFormat
}

type jsonVersionResponse struct {
	APIVersion       string   `json:"apiVersion"`
	YoutubeDLVersion string   `json:"youtubeDlVersion"`
	UID              string   `json:"uid"`
	MediaFormats     []string `json:"mediaFormats"`
}

func (j *jsonVersionResponse) validate() error {
	if j.APIVersion == "" {
		return DecodeError("version response without apiVersion")
	}
	return nil
}

func (j *jsonVersionResponse) toVersionInfo() *VersionInfo {
	info := &VersionInfo{
		APIVersion:       j.APIVersion,
		YoutubeDLVersion: j.YoutubeDLVersion,
		ClientID:         j.UID,
	}
	for _, f := range j.MediaFormats {
		info.MediaFormats = append(info.MediaFormats, MediaFormat(f))
	}
	return info
}

// Version retrieves the backend version, its supported output formats and the
// client identity. The identity is only present when the request carried none
// or the backend decided to issue a new one.
func (s *Session) Version(ctx context.Context) (*VersionInfo, error) {
	var jsonResponse jsonVersionResponse
	if err := s.getJSON(ctx, "version", nil, &jsonResponse); err != nil {
		return nil, err
	}
	if err := jsonResponse.validate(); err != nil {
		return nil, err
	}
	return jsonResponse.toVersionInfo(), nil
}

// Downloads retrieves every job of the current client in backend order.
func (s *Session) Downloads(ctx context.Context) ([]DownloadJob, error) {
	var jsonResponse jsonDownloadsResponse
	if err := s.getJSON(ctx, "downloads", nil, &jsonResponse); err != nil {
		return nil, err
	}
	if err := jsonResponse.validate(); err != nil {
		return nil, err
	}
	return jsonResponse.toDownloadJobs(s.durationUnit), nil
}

// EnqueueRequest asks the backend to download url with the given streams.
// At least one of VideoStreamID and AudioStreamID must be set.
type EnqueueRequest struct {
	URL           string      `json:"url"`
	VideoStreamID string      `json:"videoStreamId,omitempty"`
	AudioStreamID string      `json:"audioStreamId,omitempty"`
	MediaFormat   MediaFormat `json:"mediaFormat"`
}

func (r *EnqueueRequest) validate() error {
	if r.URL == "" {
		return &ValidationError{Status: http.StatusUnprocessableEntity, Messages: []string{"URL is required."}}
	}
	if r.VideoStreamID == "" && r.AudioStreamID == "" {
		return &ValidationError{
			Status:   http.StatusUnprocessableEntity,
			Messages: []string{"Video or/and audio stream id should be specified for download."},
		}
	}
	if r.MediaFormat == "" {
		return &ValidationError{Status: http.StatusUnprocessableEntity, Messages: []string{"Media format is required."}}
	}
	return nil
}

// Enqueue submits a new download and returns the refreshed job list.
// The request is validated locally before it is sent.
func (s *Session) Enqueue(ctx context.Context, req EnqueueRequest) ([]DownloadJob, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	var jsonResponse jsonDownloadsResponse
	if err := s.sendJSON(ctx, http.MethodPut, "download", nil, req, &jsonResponse); err != nil {
		return nil, err
	}
	if err := jsonResponse.validate(); err != nil {
		return nil, err
	}
	return jsonResponse.toDownloadJobs(s.durationUnit), nil
}

// Delete removes the file of a job on the backend. The returned status tells
// whether the job is actually gone (StatusDeleted).
func (s *Session) Delete(ctx context.Context, id MediaID) (*StatusResponse, error) {
	var jsonResponse jsonStatusResponse
	params := map[string]string{"mediaId": string(id)}
	if err := s.sendJSON(ctx, http.MethodDelete, "delete", params, nil, &jsonResponse); err != nil {
		return nil, err
	}
	if err := jsonResponse.validate(); err != nil {
		return nil, err
	}
	return jsonResponse.toStatusResponse(), nil
}

// RetryResponse carries whichever form the backend answered a retry with:
// a refreshed job list or a single status.
type RetryResponse struct {
	Downloads []DownloadJob
	Status    *StatusResponse
}

// Retry restarts a failed job.
func (s *Session) Retry(ctx context.Context, id MediaID) (*RetryResponse, error) {
	var raw json.RawMessage
	params := map[string]string{"mediaId": string(id)}
	if err := s.sendJSON(ctx, http.MethodPut, "retry", params, nil, &raw); err != nil {
		return nil, err
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, DecodeError(err.Error())
	}
	if _, ok := probe["downloads"]; ok {
		var jsonResponse jsonDownloadsResponse
		if err := json.Unmarshal(raw, &jsonResponse); err != nil {
			return nil, DecodeError(err.Error())
		}
		if err := jsonResponse.validate(); err != nil {
			return nil, err
		}
		return &RetryResponse{Downloads: jsonResponse.toDownloadJobs(s.durationUnit)}, nil
	}

	var jsonResponse jsonStatusResponse
	if err := json.Unmarshal(raw, &jsonResponse); err != nil {
		return nil, DecodeError(err.Error())
	}
	if err := jsonResponse.validate(); err != nil {
		return nil, err
	}
	return &RetryResponse{Status: jsonResponse.toStatusResponse()}, nil
}
