package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"ytconvert/internal/convert"
	"ytconvert/internal/filename"
	"ytconvert/internal/media"
	"ytconvert/internal/store"
)

const defaultHistoryLimit = 50

type failureResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
}

type metadataResponse struct {
	Success bool `json:"success"`
	media.Metadata
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFailure(w http.ResponseWriter, status int, message string, url string) {
	writeJSON(w, status, failureResponse{Success: false, Message: message, URL: url})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "yt-dlp API is running"})
}

// GET /metadata?url=
func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	s.stats.metadataRequests.Add(1)
	rawURL := r.URL.Query().Get("url")

	m, err := s.svc.Metadata(r.Context(), rawURL)
	if err != nil {
		s.stats.metadataFailed.Add(1)
		status := convert.StatusCode(err)
		log := s.requestLog(r).With(zap.String("url", rawURL), zap.Error(err))
		if status >= http.StatusInternalServerError {
			log.Error("metadata lookup failed")
		} else {
			log.Info("metadata request rejected")
		}
		writeFailure(w, status, convert.Message(err, convert.MetadataDiagnosticLimit, convert.DefaultMetadataFailure), rawURL)
		return
	}
	writeJSON(w, http.StatusOK, metadataResponse{Success: true, Metadata: m})
}

// GET /download-single?url=&format=mp3|mp4
func (s *Server) handleDownloadSingle(w http.ResponseWriter, r *http.Request) {
	req, err := convert.ParseRequest(r.URL.Query())
	if err != nil {
		s.requestLog(r).Info("download request rejected", zap.Error(err))
		writeFailure(w, convert.StatusCode(err), convert.Message(err, 0, convert.DefaultDownloadFailure), r.URL.Query().Get("url"))
		return
	}
	log := s.requestLog(r).With(zap.String("url", req.URL), zap.String("format", req.Format.String()))

	s.stats.activeDownloads.Add(1)
	defer s.stats.activeDownloads.Add(-1)

	var served *convert.Artifact
	var written int64
	err = s.svc.Download(r.Context(), req, func(a *convert.Artifact) error {
		h := w.Header()
		h.Set("Content-Type", a.ContentType)
		h.Set("Content-Disposition", contentDisposition(a.Name))
		h.Set("Content-Length", strconv.FormatInt(a.Size, 10))
		w.WriteHeader(http.StatusOK)
		served = a

		n, err := io.Copy(w, a.Body)
		written = n
		if err != nil {
			return fmt.Errorf("stream interrupted after %d of %d bytes: %w", n, a.Size, err)
		}
		return nil
	})
	if err != nil {
		s.stats.failedDownloads.Add(1)
		if served != nil {
			// Headers are already on the wire; nothing left to tell the client.
			log.Warn("download stream failed", zap.String("filename", served.Name), zap.Error(err))
			return
		}
		log.Error("download failed", zap.Error(err))
		writeFailure(w, convert.StatusCode(err), convert.Message(err, convert.DownloadDiagnosticLimit, convert.DefaultDownloadFailure), req.URL)
		return
	}

	s.stats.completedDownloads.Add(1)
	s.stats.bytesServed.Add(written)
	log.Info("download served", zap.String("filename", served.Name), zap.Int64("bytes", written))
	s.recordHistory(log, req, served)
}

func (s *Server) recordHistory(log *zap.Logger, req media.Request, a *convert.Artifact) {
	if s.opts.History == nil {
		return
	}
	entry := &store.Entry{
		URL:      req.URL,
		Format:   req.Format.String(),
		Filename: a.Name,
		Title:    strings.TrimSuffix(a.SourceName, filepath.Ext(a.SourceName)),
		Size:     a.Size,
	}
	if err := s.opts.History.Add(entry); err != nil {
		log.Warn("failed to record download history", zap.Error(err))
	}
}

// contentDisposition quotes the already sanitized name and adds an RFC 5987
// filename* when it is not plain ASCII.
func contentDisposition(name string) string {
	v := `attachment; filename="` + name + `"`
	if !filename.IsASCII(name) {
		v += "; filename*=UTF-8''" + url.PathEscape(name)
	}
	return v
}

// GET /history?limit=
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		writeFailure(w, http.StatusNotFound, "download history is disabled", "")
		return
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeFailure(w, http.StatusBadRequest, "limit must be a non-negative integer", "")
			return
		}
		limit = n
	}
	entries, err := s.opts.History.List(limit)
	if err != nil {
		s.requestLog(r).Error("failed to list history", zap.Error(err))
		writeFailure(w, http.StatusInternalServerError, "failed to read download history", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "entries": entries})
}

// DELETE /history/{id}
func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		writeFailure(w, http.StatusNotFound, "download history is disabled", "")
		return
	}
	id := r.PathValue("id")
	if id == "" {
		writeFailure(w, http.StatusBadRequest, "Missing history ID", "")
		return
	}
	if err := s.opts.History.Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeFailure(w, http.StatusNotFound, "History entry not found", "")
			return
		}
		s.requestLog(r).Error("failed to delete history entry", zap.String("id", id), zap.Error(err))
		writeFailure(w, http.StatusInternalServerError, "failed to delete history entry", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}
