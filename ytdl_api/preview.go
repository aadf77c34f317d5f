package ytdl_api

import (
	"context"
	"time"
)

// Stream is one selectable audio or video stream of a source.
// Quality is the resolution for video streams and the bitrate for audio streams.
type Stream struct {
	ID       string
	Mimetype string
	Quality  string
}

// Preview is the metadata of a source URL before it is enqueued.
type Preview struct {
	URL          string
	Title        string
	Duration     time.Duration
	ThumbnailURL string
	AudioStreams []Stream
	VideoStreams []Stream
	MediaFormats []MediaFormat
}

// HasStream reports whether id is one of the offered streams of the given kind.
func (p *Preview) HasStream(id string, audio bool) bool {
	streams := p.VideoStreams
	if audio {
		streams = p.AudioStreams
	}
	for _, st := range streams {
		if st.ID == id {
			return true
		}
	}
	return false
}

// OffersFormat reports whether f is one of the offered output formats.
func (p *Preview) OffersFormat(f MediaFormat) bool {
	for _, offered := range p.MediaFormats {
		if offered == f {
			return true
		}
	}
	return false
}

type jsonStream struct {
	ID         string `json:"id"`
	Mimetype   string `json:"mimetype"`
	Resolution string `json:"resolution"`
	Bitrate    string `json:"bitrate"`
}

type jsonPreviewResponse struct {
	Title        string       `json:"title"`
	Duration     float64      `json:"duration"`
	ThumbnailURL string       `json:"thumbnailUrl"`
	AudioStreams []jsonStream `json:"audioStreams"`
	VideoStreams []jsonStream `json:"videoStreams"`
	MediaFormats []string     `json:"mediaFormats"`
}

func (j *jsonPreviewResponse) validate() error {
	if j.Duration < 0 {
		return DecodeError("preview with negative duration")
	}
	for _, st := range append(append([]jsonStream{}, j.AudioStreams...), j.VideoStreams...) {
		if st.ID == "" {
			return DecodeError("preview stream without id")
		}
	}
	return nil
}

func (j *jsonPreviewResponse) toPreview(url string, unit DurationUnit) *Preview {
	p := &Preview{
		URL:          url,
		Title:        j.Title,
		Duration:     unit.toDuration(j.Duration),
		ThumbnailURL: j.ThumbnailURL,
	}
	for _, st := range j.AudioStreams {
		p.AudioStreams = append(p.AudioStreams, Stream{ID: st.ID, Mimetype: st.Mimetype, Quality: st.Bitrate})
	}
	for _, st := range j.VideoStreams {
		p.VideoStreams = append(p.VideoStreams, Stream{ID: st.ID, Mimetype: st.Mimetype, Quality: st.Resolution})
	}
	for _, f := range j.MediaFormats {
		p.MediaFormats = append(p.MediaFormats, MediaFormat(f))
	}
	return p
}

// Preview looks up the title, duration and available streams of url.
func (s *Session) Preview(ctx context.Context, url string) (*Preview, error) {
	var jsonResponse jsonPreviewResponse
	if err := s.getJSON(ctx, "preview", map[string]string{"url": url}, &jsonResponse); err != nil {
		return nil, err
	}
	if err := jsonResponse.validate(); err != nil {
		return nil, err
	}
	return jsonResponse.toPreview(url, s.durationUnit), nil
}
