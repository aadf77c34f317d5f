package ytdl_api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion(t *testing.T) {
	mb := newMockBackend(t)
	s := mb.newSession(t)

	info, err := s.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", info.APIVersion)
	assert.Equal(t, "2023.03.04", info.YoutubeDLVersion)
	assert.Equal(t, "1080c61c7683442e8d466c69917e8aa4", info.ClientID)
	assert.Equal(t, []MediaFormat{FormatMP4, FormatMP3, FormatWAV}, info.MediaFormats)
	assert.Empty(t, s.ClientID(), "Version does not adopt the issued identity by itself")
}

func TestDownloads(t *testing.T) {
	mb := newMockBackend(t)
	s := mb.newSession(t)

	// The backend rejects listing without identity
	_, err := s.Downloads(context.Background())
	require.Error(t, err)
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, http.StatusUnprocessableEntity, validationErr.Status)
	assert.Equal(t, "field required", UserMessage(err))

	s.SetClientID("1080c61c7683442e8d466c69917e8aa4")
	jobs, err := s.Downloads(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	assert.Equal(t, DownloadJob{
		MediaID:       "b8d3f2a1c4e5",
		Title:         "Adam Knight - I've Got The Gold (Shoby Remix)",
		URL:           "https://www.youtube.com/watch?v=B8WgNGN0IVA",
		ThumbnailURL:  "https://i.ytimg.com/vi_webp/B8WgNGN0IVA/maxresdefault.webp",
		Duration:      479 * time.Second,
		Status:        StatusFinished,
		Progress:      100,
		Filesize:      5696217,
		FilesizeHuman: "5.43 MB",
		MediaFormat:   FormatMP3,
		AudioStreamID: "251",
		IsAudio:       true,
	}, jobs[0])
	assert.Equal(t, StatusDownloading, jobs[1].Status)
	assert.Equal(t, 42, jobs[1].Progress)
	assert.Zero(t, jobs[1].Filesize, "null filesize means unknown")
	assert.Equal(t, StatusFailed, jobs[2].Status)
	assert.Equal(t, "Video", jobs[2].Kind())
	assert.Equal(t, "Audio", jobs[0].Kind())

	assert.Equal(t, "1080c61c7683442e8d466c69917e8aa4", mb.lastRequest().URL.Query().Get("uid"))
}

func TestDownloadsMillisecondDuration(t *testing.T) {
	mb := newMockBackend(t)
	s := mb.newSession(t, WithClientID("u"), WithDurationUnit(DurationMilliseconds))

	jobs, err := s.Downloads(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 479*time.Millisecond, jobs[0].Duration)
}

func TestDownloadsInvalidResponse(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"Not JSON", `<html>`},
		{"Missing media id", `{"downloads": [{"title": "x", "status": "started"}]}`},
		{"Unknown status", `{"downloads": [{"mediaId": "m", "status": "paused"}]}`},
		{"Progress out of range", `{"downloads": [{"mediaId": "m", "status": "downloading", "progress": 150}]}`},
		{"Negative duration", `{"downloads": [{"mediaId": "m", "status": "started", "duration": -1}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer()
			defer ts.close()
			ts.addResponse(http.StatusOK, tc.body)

			s, err := NewSession(ts.server.URL, WithClientID("u"))
			require.NoError(t, err)
			_, err = s.Downloads(context.Background())
			assert.IsType(t, DecodeError(""), err)
		})
	}
}

func TestDownloadsMissingStatusMeansStarted(t *testing.T) {
	ts := newTestServer()
	defer ts.close()
	ts.addResponse(http.StatusOK, `{"downloads": [{"mediaId": "m", "title": "t"}]}`)

	s, err := NewSession(ts.server.URL, WithClientID("u"))
	require.NoError(t, err)
	jobs, err := s.Downloads(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, StatusStarted, jobs[0].Status)
}

func TestEnqueue(t *testing.T) {
	mb := newMockBackend(t)
	s := mb.newSession(t, WithClientID("u"))

	req := EnqueueRequest{
		URL:           "https://www.youtube.com/watch?v=B8WgNGN0IVA",
		AudioStreamID: "251",
		MediaFormat:   FormatMP3,
	}
	jobs, err := s.Enqueue(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, jobs, 3)

	last := mb.lastRequest()
	assert.Equal(t, http.MethodPut, last.Method)
	assert.Equal(t, "application/json", last.Header.Get("Content-Type"))

	var sent map[string]any
	require.NoError(t, json.Unmarshal(mb.lastBody, &sent))
	assert.Equal(t, map[string]any{
		"url":           "https://www.youtube.com/watch?v=B8WgNGN0IVA",
		"audioStreamId": "251",
		"mediaFormat":   "mp3",
	}, sent)
}

func TestEnqueueValidation(t *testing.T) {
	mb := newMockBackend(t)
	s := mb.newSession(t, WithClientID("u"))

	_, err := s.Enqueue(context.Background(), EnqueueRequest{URL: "https://youtu.be/x", MediaFormat: FormatMP4})
	require.Error(t, err)
	assert.Equal(t, "Video or/and audio stream id should be specified for download.", UserMessage(err))
	assert.Nil(t, mb.lastRequest(), "invalid requests are not sent")

	_, err = s.Enqueue(context.Background(), EnqueueRequest{URL: "https://youtu.be/x", VideoStreamID: "137"})
	require.Error(t, err)
	assert.Nil(t, mb.lastRequest())
}

func TestEnqueueServerValidationError(t *testing.T) {
	ts := newTestServer()
	defer ts.close()
	ts.addResponse(http.StatusUnprocessableEntity, string(cannedResponseValidationError))

	s, err := NewSession(ts.server.URL, WithClientID("u"))
	require.NoError(t, err)
	_, err = s.Enqueue(context.Background(), EnqueueRequest{URL: "https://vimeo.com/1", VideoStreamID: "1", MediaFormat: FormatMP4})

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, []string{"Domain is not allowed", "field required"}, validationErr.Messages)
	assert.Equal(t, "Domain is not allowed", UserMessage(err))
}

func TestDelete(t *testing.T) {
	mb := newMockBackend(t)
	s := mb.newSession(t, WithClientID("u"))

	resp, err := s.Delete(context.Background(), "b8d3f2a1c4e5")
	require.NoError(t, err)
	assert.Equal(t, &StatusResponse{MediaID: "b8d3f2a1c4e5", Status: StatusDeleted}, resp)
	assert.Equal(t, http.MethodDelete, mb.lastRequest().Method)
	assert.Equal(t, "b8d3f2a1c4e5", mb.lastRequest().URL.Query().Get("mediaId"))

	_, err = s.Delete(context.Background(), "unknown")
	var serverErr *ServerError
	require.True(t, errors.As(err, &serverErr))
	assert.Equal(t, http.StatusNotFound, serverErr.Status)
	assert.Equal(t, "Download not found", UserMessage(err))
}

func TestRetry(t *testing.T) {
	mb := newMockBackend(t)
	s := mb.newSession(t, WithClientID("u"))

	resp, err := s.Retry(context.Background(), "0a1b2c3d4e5f")
	require.NoError(t, err)
	require.NotNil(t, resp.Status)
	assert.Nil(t, resp.Downloads)
	assert.Equal(t, StatusStarted, resp.Status.Status)
	assert.Equal(t, MediaID("0a1b2c3d4e5f"), resp.Status.MediaID)
}

func TestRetryWithDownloadList(t *testing.T) {
	ts := newTestServer()
	defer ts.close()
	ts.addResponse(http.StatusOK, string(cannedResponseDownloads))

	s, err := NewSession(ts.server.URL, WithClientID("u"))
	require.NoError(t, err)
	resp, err := s.Retry(context.Background(), "0a1b2c3d4e5f")
	require.NoError(t, err)
	assert.Nil(t, resp.Status)
	assert.Len(t, resp.Downloads, 3)
}

func TestRetryWithNullDownloadList(t *testing.T) {
	ts := newTestServer()
	defer ts.close()
	ts.addResponse(http.StatusOK, `{"downloads": null}`)

	s, err := NewSession(ts.server.URL, WithClientID("u"))
	require.NoError(t, err)
	resp, err := s.Retry(context.Background(), "0a1b2c3d4e5f")
	require.NoError(t, err)
	assert.Nil(t, resp.Status)
	require.NotNil(t, resp.Downloads, "a null list is an empty list, not a missing one")
	assert.Empty(t, resp.Downloads)
}

func TestPreview(t *testing.T) {
	mb := newMockBackend(t)
	s := mb.newSession(t)

	p, err := s.Preview(context.Background(), "https://www.youtube.com/watch?v=B8WgNGN0IVA")
	require.NoError(t, err)
	assert.Equal(t, "Adam Knight - I've Got The Gold (Shoby Remix)", p.Title)
	assert.Equal(t, 479*time.Second, p.Duration)
	assert.Equal(t, []Stream{
		{ID: "251", Mimetype: "audio/webm", Quality: "160kbps"},
		{ID: "140", Mimetype: "audio/mp4", Quality: "128kbps"},
	}, p.AudioStreams)
	assert.Equal(t, "1080p", p.VideoStreams[0].Quality)
	assert.True(t, p.HasStream("137", false))
	assert.False(t, p.HasStream("137", true))
	assert.True(t, p.OffersFormat(FormatWAV))
	assert.False(t, p.OffersFormat("flac"))
	assert.Equal(t, "https://www.youtube.com/watch?v=B8WgNGN0IVA", mb.lastRequest().URL.Query().Get("url"))

	_, err = s.Preview(context.Background(), "")
	assert.Equal(t, "Domain is not allowed", UserMessage(err))
}

func TestFetch(t *testing.T) {
	mb := newMockBackend(t)
	s := mb.newSession(t, WithClientID("u"))

	file, err := s.Fetch(context.Background(), "b8d3f2a1c4e5")
	require.NoError(t, err)
	defer file.Body.Close()

	assert.Equal(t, "Adam Knight - I've Got The Gold.mp3", file.Filename)
	assert.Equal(t, "audio/mpeg", file.ContentType)
	data, err := io.ReadAll(file.Body)
	require.NoError(t, err)
	assert.Equal(t, mockFileContent, string(data))
	assert.Equal(t, int64(len(mockFileContent)), file.ContentLength)
}

func TestFetchErrors(t *testing.T) {
	ts := newTestServer()
	defer ts.close()
	ts.addResponse(http.StatusNotFound, `{"detail": "Downloaded file not found"}`)
	ts.addResponse(http.StatusOK, `binary`)

	s, err := NewSession(ts.server.URL, WithClientID("u"))
	require.NoError(t, err)

	_, err = s.Fetch(context.Background(), "m")
	assert.Equal(t, "Downloaded file not found", UserMessage(err))

	// A response without Content-Disposition cannot be saved
	_, err = s.Fetch(context.Background(), "m")
	assert.IsType(t, DecodeError(""), err)
}

func TestFilenameFromContentDisposition(t *testing.T) {
	cases := []struct {
		name        string
		disposition string
		want        string
		wantErr     bool
	}{
		{"Extended form", `attachment; filename*=utf-8''%E3%83%86%E3%82%B9%E3%83%88.mp4`, "テスト.mp4", false},
		{"Extended form wins", `attachment; filename="plain.mp4"; filename*=UTF-8''fancy%20name.mp4`, "fancy name.mp4", false},
		{"Plain form", `attachment; filename="plain.mp4"`, "plain.mp4", false},
		{"Path components are stripped", `attachment; filename="../../etc/passwd"`, "passwd", false},
		{"Windows separators are stripped", `attachment; filename="C:\\temp\\clip.mp4"`, "clip.mp4", false},
		{"Missing filename", `attachment`, "", true},
		{"Empty header", ``, "", true},
		{"Malformed", `attachment; filename=`, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := filenameFromContentDisposition(tc.disposition)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
