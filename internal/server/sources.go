package server

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/justchokingaround/vodhub/internal/sources"
)

type addSourceRequest struct {
	Name   string `json:"name"`
	APIURL string `json:"api_url"`
}

func (s *Server) listSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Sources.List())
}

func (s *Server) addSource(w http.ResponseWriter, r *http.Request) {
	var req addSourceRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	b, err := s.deps.Sources.Add(r.Context(), req.Name, req.APIURL)
	if err != nil {
		writeSourceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) deleteSource(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sources.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeSourceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) toggleSource(w http.ResponseWriter, r *http.Request) {
	b, err := s.deps.Sources.Toggle(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeSourceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) syncSources(w http.ResponseWriter, r *http.Request) {
	s.deps.Sources.Sync(r.Context())
	writeJSON(w, http.StatusOK, s.deps.Sources.List())
}

func (s *Server) resetSources(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sources.Reset(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Sources.List())
}

func (s *Server) sourcesHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Sources.CheckAll(r.Context(), s.deps.CMS, s.deps.HealthTimeout))
}

func writeSourceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sources.ErrInvalidBackend):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, sources.ErrDuplicateSource):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, sources.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, sources.ErrNotDeletable):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
