package ytdl_api

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// FileResponse is a downloaded media file. The caller must close Body.
type FileResponse struct {
	Filename      string
	ContentType   string
	ContentLength int64 // -1 when unknown
	Body          io.ReadCloser
}

// Fetch retrieves the finished file of a job.
func (s *Session) Fetch(ctx context.Context, id MediaID) (*FileResponse, error) {
	params := map[string]string{"mediaId": string(id)}
	res, err := s.httpRequest(ctx, http.MethodGet, "download", params, nil)
	if err != nil {
		return nil, err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		defer res.Body.Close()
		body, _ := io.ReadAll(res.Body)
		return nil, parseErrorResponse(res.StatusCode, body)
	}

	filename, err := filenameFromContentDisposition(res.Header.Get("Content-Disposition"))
	if err != nil {
		res.Body.Close()
		return nil, err
	}
	return &FileResponse{
		Filename:      filename,
		ContentType:   res.Header.Get("Content-Type"),
		ContentLength: res.ContentLength,
		Body:          res.Body,
	}, nil
}

// filenameFromContentDisposition extracts the file name, preferring the
// RFC 5987 form (filename*=utf-8''...) which mime decodes into "filename".
// Directory components are stripped.
func filenameFromContentDisposition(disposition string) (string, error) {
	if disposition == "" {
		return "", DecodeError("response has no Content-Disposition header")
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return "", DecodeError(fmt.Sprintf("failed to get filename from %q: %v", disposition, err))
	}
	name := params["filename"]
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "" || name == "." || name == "/" || name == ".." {
		return "", DecodeError(fmt.Sprintf("failed to get filename from %q", disposition))
	}
	return name, nil
}
