package handler

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/kiranshivaraju/videolens/internal/ai"
	"github.com/kiranshivaraju/videolens/internal/api/response"
	"github.com/kiranshivaraju/videolens/internal/ingest"
	"github.com/kiranshivaraju/videolens/pkg/models"
)

const (
	// multipartMemory is how much of a multipart body is held in memory
	// before the remainder spills to temp files.
	multipartMemory = 32 << 20
	// formOverhead is allowed on top of the upload limit for boundaries and
	// text fields.
	formOverhead = 1 << 20
)

// NewAnalyzeHandler returns an http.HandlerFunc for POST /analyze/upload.
//
// Form fields: file (binary video), youtube_url or url (remote source),
// async (bool). The file wins when both a file and a URL are given.
func NewAnalyzeHandler(svc JobService, maxUploadBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if maxUploadBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+formOverhead)
		}
		if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				response.Error(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
					"Upload exceeds the maximum allowed size", nil)
				return
			}
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid multipart form", nil)
			return
		}
		if r.MultipartForm != nil {
			defer r.MultipartForm.RemoveAll()
		}

		async := false
		if v := strings.TrimSpace(r.FormValue("async")); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "async must be a boolean", nil)
				return
			}
			async = b
		}

		sub := ai.Submission{URL: formURL(r), Async: async}

		file, header, err := r.FormFile("file")
		switch {
		case err == nil:
			defer file.Close()
			sub.Upload = &ingest.Upload{Filename: header.Filename, Size: header.Size, Body: file}
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		default:
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Could not read the uploaded file", nil)
			return
		}
		if sub.Upload != nil && isEmptyPart(header) {
			sub.Upload = nil
		}

		job, err := svc.Submit(r.Context(), sub)
		if err != nil {
			writeSubmitError(w, job, err)
			return
		}
		if async {
			response.Accepted(w, job)
			return
		}
		response.JSON(w, job)
	}
}

// formURL reads the remote source field. youtube_url is the historical
// field name and wins over url.
func formURL(r *http.Request) string {
	if v := strings.TrimSpace(r.FormValue("youtube_url")); v != "" {
		return v
	}
	return strings.TrimSpace(r.FormValue("url"))
}

// isEmptyPart reports whether a browser sent an empty file input.
func isEmptyPart(h *multipart.FileHeader) bool {
	return h.Filename == "" && h.Size == 0
}

// writeSubmitError reports a failed submission. The recorded job rides along
// in details so the immediate response matches what polling returns.
func writeSubmitError(w http.ResponseWriter, job *models.Job, err error) {
	status, code, message := classifySubmitError(err)
	if status >= http.StatusInternalServerError {
		slog.Error("analysis failed", "error", err, "code", code)
	}
	if job == nil {
		response.Error(w, status, code, message, nil)
		return
	}
	response.Error(w, status, code, message, job)
}

func classifySubmitError(err error) (int, string, string) {
	switch {
	case errors.Is(err, ai.ErrInvalidRequest):
		return http.StatusBadRequest, "INVALID_REQUEST", err.Error()
	case errors.Is(err, ai.ErrIngestionFailed):
		return http.StatusBadGateway, "INGESTION_FAILED", err.Error()
	case errors.Is(err, ai.ErrUpstreamProcessingFailed):
		return http.StatusBadGateway, "UPSTREAM_PROCESSING_FAILED", err.Error()
	case errors.Is(err, ai.ErrUpstreamTimeout):
		return http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", err.Error()
	case errors.Is(err, ai.ErrUnparsableResponse):
		return http.StatusBadGateway, "UNPARSABLE_RESPONSE", err.Error()
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"
	}
}
