// Package devstore serves an in-memory store over the HTTP actor protocol.
// It backs `canfiles dev-store` and the HTTP actor tests.
package devstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/canfiles/canfiles/internal/constants"
	"github.com/canfiles/canfiles/internal/logging"
	"github.com/canfiles/canfiles/internal/models"
	"github.com/canfiles/canfiles/internal/remote/httpactor"
	"github.com/canfiles/canfiles/internal/remote/memstore"
	"github.com/canfiles/canfiles/internal/version"
)

// Server exposes a memstore.Store.
type Server struct {
	store  *memstore.Store
	logger *logging.Logger
	router chi.Router
}

// NewServer builds the router for store.
func NewServer(store *memstore.Store, logger *logging.Logger) *Server {
	s := &Server{
		store:  store,
		logger: logging.OrDefault(logger).Component("devstore"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get(httpactor.PathHealth, s.health)
	r.Route(httpactor.PathFiles, func(r chi.Router) {
		r.Get("/", s.listFiles)
		r.Post("/", s.addFile)
		r.Patch("/{id}", s.renameFile)
		r.Get("/{id}/content", s.getContent)
		r.Put("/{id}/content", s.putContent)
	})

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
// ready, when non-nil, receives the bound address once listening.
func (s *Server) Serve(ctx context.Context, addr string, ready func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: constants.DevStoreReadHeaderTimeout,
	}
	if ready != nil {
		ready(ln.Addr())
	}
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Development store listening")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("Request")
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, httpactor.HealthBody{Status: "ok", Version: version.Version})
}

func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.ListFiles(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if files == nil {
		files = []models.FileRecord{}
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) addFile(w http.ResponseWriter, r *http.Request) {
	var body httpactor.AddFileBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	rec, err := s.store.AddFile(r.Context(), body.Name, body.Size)
	switch {
	case errors.Is(err, memstore.ErrQuotaExceeded):
		writeError(w, http.StatusInsufficientStorage, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info().Str("id", rec.ID.String()).Str("name", rec.Name).Str("size", rec.Size.String()).Msg("File registered")
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) getContent(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseFileID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	content, err := s.store.GetFileContent(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if content == nil {
		writeError(w, http.StatusNotFound, "no content for file "+id.String())
		return
	}
	writeJSON(w, http.StatusOK, httpactor.ContentBody{Name: content.Name, Bytes: content.Bytes})
}

// putContent attaches bytes to an existing record. The client never calls
// it; it lets a developer give registered files downloadable content.
func (s *Server) putContent(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseFileID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, constants.MaxContentBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if err := s.store.PutContent(id, data); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// renameFile changes the name of a record so a developer can watch the
// client pick up a remote-side change on its next refresh.
func (s *Server) renameFile(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseFileID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.store.Rename(id, body.Name); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, httpactor.ErrorBody{Error: msg})
}
