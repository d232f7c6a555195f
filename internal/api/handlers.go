package api

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"

	"github.com/shalteor/grade-calculator/internal/grades"
)

// DownloadFileName is the attachment name of GET /download-data.
const DownloadFileName = "grade.db"

func (s *Server) Hello(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Hello World!"))
}

func (s *Server) Ping(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Service: ServiceName})
}

// LoadGrades handles GET /load/{username}
func (s *Server) LoadGrades(w http.ResponseWriter, r *http.Request) {
	username, ok := s.usernameParam(w, r)
	if !ok {
		return
	}

	result, err := s.store.Load(r.Context(), username)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if !result.Found {
		WriteStatus(w, http.StatusNotFound, MessageUserNotFound)
		return
	}

	WriteJSON(w, http.StatusOK, newLoadResponse(result.Hierarchy))
}

// SaveGrades handles POST /save
func (s *Server) SaveGrades(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.requestLog(r).WithError(err).Debug("rejected save body")
		WriteStatus(w, http.StatusBadRequest, "Malformed request body.")
		return
	}

	if err := s.validate.Struct(req); err != nil {
		WriteStatus(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	result, err := s.store.Save(r.Context(), req.Username, req.Inputs())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	WriteStatus(w, http.StatusOK, result.Message)
}

// DeleteUser handles DELETE /users/{username}
func (s *Server) DeleteUser(w http.ResponseWriter, r *http.Request) {
	username, ok := s.usernameParam(w, r)
	if !ok {
		return
	}

	if err := s.store.Delete(r.Context(), username); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	WriteStatus(w, http.StatusOK, fmt.Sprintf("Data was deleted for %s.", username))
}

// DownloadData streams a consistent copy of the database file.
func (s *Server) DownloadData(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshots.Snapshot(r.Context())
	if err != nil {
		s.requestLog(r).WithError(err).Error("failed to snapshot database")
		WriteError(w, http.StatusInternalServerError, "Failed to read database file.")
		return
	}
	defer func() {
		if err := snap.Close(); err != nil {
			s.requestLog(r).WithError(err).Warn("failed to remove snapshot")
		}
	}()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", DownloadFileName))
	http.ServeContent(w, r, DownloadFileName, time.Time{}, snap)
}

// usernameParam returns the decoded {username} segment. chi matches against
// r.URL.RawPath when it is set (e.g. for an escaped "/"), and only then is
// the parameter still escaped.
func (s *Server) usernameParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	username := chi.URLParam(r, "username")
	var err error
	if r.URL.RawPath != "" {
		username, err = url.PathUnescape(username)
	}
	if err != nil || username == "" {
		WriteStatus(w, http.StatusBadRequest, "Invalid username.")
		return "", false
	}
	return username, true
}

// writeStoreError maps store errors onto the {status, message} payload.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, grades.ErrNotFound):
		WriteStatus(w, http.StatusNotFound, MessageUserNotFound)
	case grades.IsValidation(err):
		WriteStatus(w, http.StatusBadRequest, err.Error())
	default:
		s.requestLog(r).WithError(err).Error("store operation failed")
		WriteStatus(w, http.StatusInternalServerError, MessageInternal)
	}
}

func (s *Server) requestLog(r *http.Request) *logrus.Entry {
	return s.log.WithFields(logrus.Fields{
		"request-id": middleware.GetReqID(r.Context()),
		"path":       r.URL.Path,
	})
}
