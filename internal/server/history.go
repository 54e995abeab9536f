package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/justchokingaround/vodhub/internal/history"
)

type progressBody struct {
	ID      string  `json:"id"`
	Episode int     `json:"episode"`
	Seconds float64 `json:"seconds"`
}

type sessionBody struct {
	SourceIndex  int `json:"source_index"`
	EpisodeIndex int `json:"episode_index"`
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	var (
		entries []history.Entry
		err     error
	)
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		entries, err = s.deps.History.Search(q)
	} else {
		entries, err = s.deps.History.List(history.FilterOptions{})
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) addHistory(w http.ResponseWriter, r *http.Request) {
	var entry history.Entry
	if err := decodeBody(w, r, &entry); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.deps.History.Add(entry); err != nil {
		if errors.Is(err, history.ErrInvalidEntry) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) removeHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.History.Remove(mux.Vars(r)["id"]); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) clearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.History.Clear(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getProgress(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	id := query.Get("id")
	episode, err := strconv.Atoi(query.Get("episode"))
	if id == "" || err != nil {
		writeError(w, http.StatusBadRequest, "id and numeric episode are required")
		return
	}
	writeJSON(w, http.StatusOK, progressBody{
		ID:      id,
		Episode: episode,
		Seconds: s.deps.History.Progress(id, episode),
	})
}

func (s *Server) putProgress(w http.ResponseWriter, r *http.Request) {
	var body progressBody
	if err := decodeBody(w, r, &body); err != nil || body.ID == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.deps.History.SetProgress(body.ID, body.Episode, body.Seconds); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	writeJSON(w, http.StatusOK, sessionBody{
		SourceIndex:  s.deps.History.SourceIndex(id),
		EpisodeIndex: s.deps.History.EpisodeIndex(id),
	})
}

func (s *Server) putSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body sessionBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.deps.History.SetSourceIndex(id, body.SourceIndex); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.deps.History.SetEpisodeIndex(id, body.EpisodeIndex); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
