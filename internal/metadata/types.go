package metadata

import "github.com/justchokingaround/vodhub/internal/media"

// Suggestion is one hit of the metadata service's suggest endpoint
type Suggestion struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	SubTitle string `json:"sub_title,omitempty"`
	Img      string `json:"img"`
	URL      string `json:"url"`
	Type     string `json:"type"`
	Year     string `json:"year,omitempty"`
	Episode  string `json:"episode,omitempty"`
}

// Item converts the suggestion into a metadata-origin catalog item
func (s Suggestion) Item() media.CatalogItem {
	item := media.NewMetadataItem(s.ID, s.Title, upgradeScheme(s.Img))
	item.Year = s.Year
	item.Type = s.Type
	item.Remarks = s.Episode
	return item
}

// subject is one entry of the subject search (hot list) endpoint
type subject struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Rate  string `json:"rate"`
	Cover string `json:"cover"`
	URL   string `json:"url"`
	IsNew bool   `json:"is_new"`
}

type subjectSearchResponse struct {
	Subjects []subject `json:"subjects"`
}

// catalogEntry is the kv-cached form of a hot list
type catalogEntry struct {
	FetchedAt int64               `json:"fetched_at"` // unix millis
	Limit     int                 `json:"limit"`      // page_limit the list was fetched with
	Items     []media.CatalogItem `json:"items"`
}
