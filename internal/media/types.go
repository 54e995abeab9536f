// Package media holds the records shared by the metadata resolver, the backend
// index client, the aggregation engine and the playlist parser.
package media

import "strings"

// Origin tags where a record came from
type Origin string

const (
	OriginMetadata Origin = "metadata-service"
	OriginBackend  Origin = "backend-index"
)

// SegmentSeparator splits play_from/play_url into one segment per backend line
const SegmentSeparator = "$$$"

// CatalogItem is a list entry. Backend-origin items always carry APIURL.
type CatalogItem struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Poster  string `json:"poster"`
	Score   string `json:"score,omitempty"`
	Year    string `json:"year,omitempty"`
	Type    string `json:"type,omitempty"`
	Remarks string `json:"remarks,omitempty"`
	Origin  Origin `json:"origin"`
	APIURL  string `json:"api_url,omitempty"`
}

// NewMetadataItem creates a metadata-origin item
func NewMetadataItem(id, name, poster string) CatalogItem {
	return CatalogItem{ID: id, Name: name, Poster: poster, Origin: OriginMetadata}
}

// NewBackendItem creates a backend-origin item bound to apiURL
func NewBackendItem(apiURL, id, name, poster string) CatalogItem {
	return CatalogItem{ID: id, Name: name, Poster: poster, Origin: OriginBackend, APIURL: apiURL}
}

// IsBackend reports whether the item came from a backend index
func (c CatalogItem) IsBackend() bool {
	return c.Origin == OriginBackend && c.APIURL != ""
}

// CastMember is a credited person with a photo
type CastMember struct {
	Name  string `json:"name"`
	Role  string `json:"role,omitempty"`
	Photo string `json:"photo,omitempty"`
}

// RelatedTitle is a "people also watched" entry
type RelatedTitle struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Poster string `json:"poster,omitempty"`
}

// Review is a short user review
type Review struct {
	Author   string  `json:"author"`
	Avatar   string  `json:"avatar,omitempty"`
	Rating   float64 `json:"rating"` // 0-5
	Content  string  `json:"content"`
	Time     string  `json:"time,omitempty"`
	Votes    int     `json:"votes"`
	Location string  `json:"location,omitempty"`
}

// DetailRecord is a fully described title.
// PlayURL and PlayFrom are both empty or hold the same number of $$$ segments.
type DetailRecord struct {
	CatalogItem

	Synopsis     string `json:"synopsis,omitempty"`
	Director     string `json:"director,omitempty"`
	Writer       string `json:"writer,omitempty"`
	Cast         string `json:"cast,omitempty"`
	Country      string `json:"country,omitempty"`
	Language     string `json:"language,omitempty"`
	PublishDate  string `json:"publish_date,omitempty"`
	EpisodeCount string `json:"episode_count,omitempty"`
	Duration     string `json:"duration,omitempty"`
	Alias        string `json:"alias,omitempty"`
	ExternalID   string `json:"external_id,omitempty"`
	MetadataID   string `json:"metadata_id,omitempty"`

	PlayURL  string `json:"play_url,omitempty"`
	PlayFrom string `json:"play_from,omitempty"`

	CastMembers []CastMember   `json:"cast_members,omitempty"`
	Related     []RelatedTitle `json:"related,omitempty"`
	Reviews     []Review       `json:"reviews,omitempty"`
}

// HasPlaylist reports whether the record carries play-list data
func (d *DetailRecord) HasPlaylist() bool {
	return d != nil && d.PlayURL != "" && d.PlayFrom != ""
}

// PlaylistConsistent checks the play_url/play_from invariant
func (d *DetailRecord) PlaylistConsistent() bool {
	if d.PlayURL == "" || d.PlayFrom == "" {
		return d.PlayURL == d.PlayFrom
	}
	return strings.Count(d.PlayURL, SegmentSeparator) == strings.Count(d.PlayFrom, SegmentSeparator)
}

// Segments returns the number of backend lines in the play-list
func (d *DetailRecord) Segments() int {
	if !d.HasPlaylist() {
		return 0
	}
	return strings.Count(d.PlayFrom, SegmentSeparator) + 1
}

// Merge overlays a metadata-origin record onto a backend-origin record.
//
// Precedence: identity (ID, Origin, APIURL) and play-list fields always come
// from backend; descriptive fields come from meta whenever meta has them and
// fall back to backend otherwise. Either argument may be nil. Inputs are not
// modified.
func Merge(meta, backend *DetailRecord) *DetailRecord {
	switch {
	case meta == nil && backend == nil:
		return nil
	case meta == nil:
		out := *backend
		return &out
	case backend == nil:
		out := *meta
		out.PlayURL, out.PlayFrom = "", ""
		return &out
	}

	out := *backend
	out.Name = prefer(meta.Name, backend.Name)
	out.Poster = prefer(meta.Poster, backend.Poster)
	out.Score = prefer(meta.Score, backend.Score)
	out.Year = prefer(meta.Year, backend.Year)
	out.Type = prefer(meta.Type, backend.Type)
	out.Remarks = prefer(backend.Remarks, meta.Remarks)

	out.Synopsis = prefer(meta.Synopsis, backend.Synopsis)
	out.Director = prefer(meta.Director, backend.Director)
	out.Writer = prefer(meta.Writer, backend.Writer)
	out.Cast = prefer(meta.Cast, backend.Cast)
	out.Country = prefer(meta.Country, backend.Country)
	out.Language = prefer(meta.Language, backend.Language)
	out.PublishDate = prefer(meta.PublishDate, backend.PublishDate)
	out.EpisodeCount = prefer(meta.EpisodeCount, backend.EpisodeCount)
	out.Duration = prefer(meta.Duration, backend.Duration)
	out.Alias = prefer(meta.Alias, backend.Alias)
	out.ExternalID = prefer(meta.ExternalID, backend.ExternalID)
	out.MetadataID = prefer(meta.ID, prefer(meta.MetadataID, backend.MetadataID))

	if len(meta.CastMembers) > 0 {
		out.CastMembers = meta.CastMembers
	}
	if len(meta.Related) > 0 {
		out.Related = meta.Related
	}
	if len(meta.Reviews) > 0 {
		out.Reviews = meta.Reviews
	}

	return &out
}

func prefer(primary, fallback string) string {
	if strings.TrimSpace(primary) != "" {
		return primary
	}
	return fallback
}

// Episode is one playable entry of a play source
type Episode struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Index int    `json:"index"`
}

// PlaySource is one named backend line with its ordered episodes
type PlaySource struct {
	Name     string    `json:"name"`
	Episodes []Episode `json:"episodes"`
}
