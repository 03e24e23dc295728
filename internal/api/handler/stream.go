package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/kiranshivaraju/videolens/internal/api/response"
	"github.com/kiranshivaraju/videolens/internal/store"
	"github.com/kiranshivaraju/videolens/pkg/models"
)

const (
	defaultStreamInterval = 500 * time.Millisecond
	streamWriteTimeout    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewStreamHandler returns an http.HandlerFunc for GET /analysis/{id}/stream.
// It pushes the job snapshot each time its timestamp moves and closes the
// connection once the job is complete or failed.
func NewStreamHandler(svc JobService, interval time.Duration) http.HandlerFunc {
	if interval <= 0 {
		interval = defaultStreamInterval
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		job, err := svc.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Analysis not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the HTTP error.
			slog.Warn("websocket upgrade failed", "job_id", id, "error", err)
			return
		}
		defer conn.Close()

		// The client sends nothing; reading only surfaces the disconnect.
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var last time.Time
		for {
			if !job.State.Timestamp.Equal(last) {
				if err := writeSnapshot(conn, job); err != nil {
					slog.Debug("stream write failed", "job_id", id, "error", err)
					return
				}
				last = job.State.Timestamp
			}
			if job.IsDone() {
				closeStream(conn, "analysis "+string(job.State.Status))
				return
			}

			select {
			case <-gone:
				return
			case <-r.Context().Done():
				return
			case <-ticker.C:
			}

			next, err := svc.Get(r.Context(), id)
			if err != nil {
				slog.Warn("stream lookup failed", "job_id", id, "error", err)
				closeStream(conn, "analysis unavailable")
				return
			}
			job = next
		}
	}
}

func writeSnapshot(conn *websocket.Conn, job *models.Job) error {
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(job)
}

func closeStream(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
