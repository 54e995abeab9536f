package cms

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// flexString accepts JSON strings, numbers and null
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if i, err := n.Int64(); err == nil {
		*f = flexString(strconv.FormatInt(i, 10))
		return nil
	}
	*f = flexString(n.String())
	return nil
}

func (f flexString) String() string {
	return string(f)
}

// listResponse is the Maccms-style envelope returned by ac=detail
type listResponse struct {
	Code      flexString `json:"code"`
	Msg       string     `json:"msg"`
	Page      flexString `json:"page"`
	PageCount flexString `json:"pagecount"`
	Total     flexString `json:"total"`
	List      []vodItem  `json:"list"`
}

type vodItem struct {
	ID        flexString `json:"vod_id"`
	Name      string     `json:"vod_name"`
	Sub       string     `json:"vod_sub"`
	Pic       string     `json:"vod_pic"`
	PlayFrom  string     `json:"vod_play_from"`
	PlayURL   string     `json:"vod_play_url"`
	Remarks   string     `json:"vod_remarks"`
	TypeName  string     `json:"type_name"`
	Year      flexString `json:"vod_year"`
	Area      string     `json:"vod_area"`
	Lang      string     `json:"vod_lang"`
	Actor     string     `json:"vod_actor"`
	Director  string     `json:"vod_director"`
	Writer    string     `json:"vod_writer"`
	Content   string     `json:"vod_content"`
	Blurb     string     `json:"vod_blurb"`
	DoubanID  flexString `json:"vod_douban_id"`
	Score     flexString `json:"vod_score"`
	PubDate   string     `json:"vod_pubdate"`
	Total     flexString `json:"vod_total"`
	Duration  string     `json:"vod_duration"`
}
