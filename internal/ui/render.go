package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/justchokingaround/vodhub/internal/history"
	"github.com/justchokingaround/vodhub/internal/imagepipe"
	"github.com/justchokingaround/vodhub/internal/media"
	"github.com/justchokingaround/vodhub/internal/sources"
	"github.com/justchokingaround/vodhub/internal/textutil"
)

const nameWidth = 36

// Catalog renders a numbered list of catalog items under heading
func Catalog(heading string, items []media.CatalogItem) string {
	var b strings.Builder
	b.WriteString(HeaderStyle.Render(heading))
	b.WriteString("\n")
	if len(items) == 0 {
		b.WriteString(HelpStyle.Render("  nothing found"))
		b.WriteString("\n")
		return b.String()
	}

	for i, item := range items {
		name := textutil.PadWidth(textutil.TruncateWidth(item.Name, nameWidth), nameWidth)
		line := fmt.Sprintf("%2d. %s", i+1, NameStyle.Render(name))

		var meta []string
		if item.Year != "" {
			meta = append(meta, item.Year)
		}
		if item.Type != "" {
			meta = append(meta, item.Type)
		}
		if item.Remarks != "" {
			meta = append(meta, item.Remarks)
		}
		meta = append(meta, "id "+item.ID)
		line += "  " + MetadataStyle.Render(strings.Join(meta, " · "))
		if item.Score != "" {
			line += "  " + ScoreStyle.Render("★ "+item.Score)
		}
		b.WriteString(ItemStyle.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

// Detail renders a merged record with its play-sources
func Detail(rec *media.DetailRecord, playSources []media.PlaySource, alternatives int) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(rec.Name))
	if rec.Year != "" {
		b.WriteString(" " + SubtitleStyle.Render("("+rec.Year+")"))
	}
	if rec.Score != "" {
		b.WriteString("  " + ScoreStyle.Render("★ "+rec.Score))
	}
	b.WriteString("  " + Badge(string(rec.Origin)))
	b.WriteString("\n\n")

	fields := []struct{ label, value string }{
		{"导演", rec.Director},
		{"编剧", rec.Writer},
		{"主演", rec.Cast},
		{"类型", rec.Type},
		{"地区", rec.Country},
		{"语言", rec.Language},
		{"上映", rec.PublishDate},
		{"集数", rec.EpisodeCount},
		{"片长", rec.Duration},
		{"又名", rec.Alias},
		{"IMDb", rec.ExternalID},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		b.WriteString(MetadataStyle.Render(textutil.PadWidth(f.label, 6)))
		b.WriteString(" " + f.value + "\n")
	}

	if rec.Synopsis != "" {
		b.WriteString("\n" + SynopsisStyle.Render(rec.Synopsis) + "\n")
	}

	b.WriteString(HeaderStyle.Render(fmt.Sprintf("Play sources (%d, %d alternate backends)", len(playSources), alternatives)))
	b.WriteString("\n")
	if len(playSources) == 0 {
		b.WriteString(HelpStyle.Render("  no playable m3u8 lines"))
		b.WriteString("\n")
	}
	for i, ps := range playSources {
		b.WriteString(fmt.Sprintf("%2d. %s %s\n", i, NameStyle.Render(ps.Name), MetadataStyle.Render(fmt.Sprintf("%d episodes", len(ps.Episodes)))))
	}

	if len(rec.Reviews) > 0 {
		b.WriteString(HeaderStyle.Render("Reviews"))
		b.WriteString("\n")
		for _, r := range rec.Reviews {
			n := min(max(int(r.Rating), 0), 5)
			stars := strings.Repeat("★", n) + strings.Repeat("☆", 5-n)
			b.WriteString(fmt.Sprintf("  %s %s  %s\n", ScoreStyle.Render(stars), NameStyle.Render(r.Author), r.Content))
		}
	}
	return b.String()
}

// Backends renders the source registry
func Backends(list []sources.Backend) string {
	var b strings.Builder
	b.WriteString(HeaderStyle.Render("Backends"))
	b.WriteString("\n")
	for _, s := range list {
		status := "active"
		if !s.Active {
			status = "disabled"
		}
		line := fmt.Sprintf("%s %s %s", NameStyle.Render(textutil.PadWidth(s.Name, 16)), Badge(status), URLStyle.Render(s.APIURL))
		if !s.CanDelete {
			line += " " + Badge("builtin")
		}
		line += "\n    " + HelpStyle.Render("id "+s.ID)
		b.WriteString(ItemStyle.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

// Health renders backend health check results
func Health(results []sources.Status) string {
	var b strings.Builder
	b.WriteString(HeaderStyle.Render("Backend health"))
	b.WriteString("\n")
	for _, r := range results {
		line := fmt.Sprintf("%s %s %s", NameStyle.Render(textutil.PadWidth(r.Backend.Name, 16)), Badge(r.Status), MetadataStyle.Render(r.Duration.Round(time.Millisecond).String()))
		if r.Error != "" {
			line += "\n    " + ErrorStyle.Render(r.Error)
			line += "\n    " + HelpStyle.Render(r.CurlCommand)
		}
		b.WriteString(ItemStyle.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

// History renders watch history with relative times
func History(entries []history.Entry, now time.Time) string {
	var b strings.Builder
	b.WriteString(HeaderStyle.Render("History"))
	b.WriteString("\n")
	if len(entries) == 0 {
		b.WriteString(HelpStyle.Render("  nothing watched yet"))
		b.WriteString("\n")
		return b.String()
	}
	for _, e := range entries {
		episode := e.EpisodeName
		if episode == "" {
			episode = fmt.Sprintf("episode %d", e.EpisodeIndex+1)
		}
		line := fmt.Sprintf("%s %s %s",
			NameStyle.Render(textutil.PadWidth(textutil.TruncateWidth(e.Name, nameWidth), nameWidth)),
			MetadataStyle.Render(episode),
			HelpStyle.Render(humanize.RelTime(e.UpdatedAt, now, "ago", "from now")))
		line += "\n    " + HelpStyle.Render("id "+e.ID)
		b.WriteString(ItemStyle.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

// Image renders an image resolution outcome
func Image(res imagepipe.Result) string {
	status := "loaded"
	target := res.URL
	if res.Placeholder {
		status = "placeholder"
		target = "(static placeholder)"
	}
	return fmt.Sprintf("%s %s\n%s\n",
		Badge(status),
		URLStyle.Render(target),
		HelpStyle.Render(fmt.Sprintf("stage %d · %d loads · %d searches", res.Stage, res.Attempts, res.Searches)))
}
