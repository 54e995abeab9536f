package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/justchokingaround/vodhub/internal/aggregate"
	"github.com/justchokingaround/vodhub/internal/imagepipe"
	"github.com/justchokingaround/vodhub/internal/media"
)

type detailResponse struct {
	Main         *media.DetailRecord   `json:"main"`
	Alternatives []*media.DetailRecord `json:"alternatives"`
	PlaySources  []media.PlaySource    `json:"play_sources"`
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Engine.Search(r.Context(), q, s.deps.CMS, s.deps.Metadata))
}

func (s *Server) detail(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := aggregate.Request{
		ID:        query.Get("id"),
		OriginAPI: query.Get("api"),
		Title:     query.Get("title"),
	}
	if strings.TrimSpace(req.ID) == "" && strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "id or title is required")
		return
	}

	res := s.deps.Engine.Aggregate(r.Context(), req)
	if res == nil {
		writeError(w, http.StatusNotFound, "title not found")
		return
	}

	playSources := aggregate.Playable(res, s.deps.Sources.NameFor)
	if playSources == nil {
		playSources = []media.PlaySource{}
	}
	writeJSON(w, http.StatusOK, detailResponse{
		Main:         res.Main,
		Alternatives: res.Alternatives,
		PlaySources:  playSources,
	})
}

func (s *Server) hot(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))

	items, err := s.deps.Metadata.Hot(r.Context(), query.Get("kind"), query.Get("tag"), limit)
	if err != nil {
		s.logger.Debug("hot list unavailable", "error", err)
		items = []media.CatalogItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// image resolves a poster through the fallback chain and redirects to the
// winner, or serves the placeholder. format=json returns the resolution itself.
func (s *Server) image(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	src := query.Get("url")
	keyword := query.Get("keyword")

	var res imagepipe.Result
	if slot := query.Get("slot"); slot != "" && s.slots != nil {
		select {
		case got, ok := <-s.slots.Get(slot).SetSource(r.Context(), src, keyword):
			if !ok {
				writeError(w, http.StatusConflict, "superseded by a newer request for this slot")
				return
			}
			res = got
		case <-r.Context().Done():
			return
		}
	} else {
		got, err := s.deps.Images.Resolve(r.Context(), src, keyword)
		if err != nil {
			return
		}
		res = got
	}

	if query.Get("format") == "json" {
		writeJSON(w, http.StatusOK, res)
		return
	}

	if res.Placeholder {
		w.Header().Set("Content-Type", imagepipe.PlaceholderContentType)
		w.Header().Set("Cache-Control", "public, max-age=300")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(imagepipe.PlaceholderSVG)
		return
	}
	http.Redirect(w, r, res.URL, http.StatusFound)
}
