package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/justchokingaround/vodhub/internal/aggregate"
	"github.com/justchokingaround/vodhub/internal/history"
	"github.com/justchokingaround/vodhub/internal/media"
	"github.com/justchokingaround/vodhub/internal/player"
	"github.com/justchokingaround/vodhub/internal/playlist"
	"github.com/justchokingaround/vodhub/internal/ui"
)

var errNotFound = errors.New("title not found on any backend")

var searchCmd = &cobra.Command{
	Use:   "search <title>",
	Short: "Search the metadata service and every active backend",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		res := app.engine.Search(cmd.Context(), query, app.cms, app.metadata)

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(res)
		}

		fmt.Print(ui.Catalog("Metadata", res.Metadata))
		for _, b := range res.Backends {
			fmt.Print(ui.Catalog(backendName(b.APIURL), b.Items))
		}
		fmt.Println(ui.HelpStyle.Render(fmt.Sprintf("%d results. Use `vodhub detail <id> --api <url>` for backend hits, `--title` for metadata hits.", res.Total())))
		return nil
	},
}

// requestFromFlags builds an aggregation request from the id argument and the
// --api/--title flags
func requestFromFlags(cmd *cobra.Command, args []string) (aggregate.Request, error) {
	api, _ := cmd.Flags().GetString("api")
	title, _ := cmd.Flags().GetString("title")

	req := aggregate.Request{OriginAPI: strings.TrimSpace(api), Title: strings.TrimSpace(title)}
	if len(args) > 0 {
		req.ID = strings.TrimSpace(args[0])
	}
	if req.ID == "" && req.Title == "" {
		return req, fmt.Errorf("an id or --title is required")
	}
	return req, nil
}

var detailCmd = &cobra.Command{
	Use:   "detail [id]",
	Short: "Show a title merged across metadata and every backend",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := requestFromFlags(cmd, args)
		if err != nil {
			return err
		}

		res := app.engine.Aggregate(cmd.Context(), req)
		if res == nil {
			return errNotFound
		}
		playSources := aggregate.Playable(res, app.sources.NameFor)

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			playFrom, playURL := playlist.Export(playSources)
			return printJSON(map[string]any{
				"main":         res.Main,
				"alternatives": res.Alternatives,
				"play_sources": playSources,
				"play_from":    playFrom,
				"play_url":     playURL,
			})
		}
		fmt.Print(ui.Detail(res.Main, playSources, len(res.Alternatives)))
		return nil
	},
}

var playCmd = &cobra.Command{
	Use:   "play [id]",
	Short: "Resolve the stream URL of an episode",
	Long: `Resolve the m3u8 URL of one episode and record it in the watch history.

Without --source/--episode the play-source and episode last used for the title
are picked. The URL is printed, and optionally copied to the clipboard, opened
in the browser, or handed to mpv/vlc/iina.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := requestFromFlags(cmd, args)
		if err != nil {
			return err
		}

		res := app.engine.Aggregate(cmd.Context(), req)
		if res == nil {
			return errNotFound
		}
		playSources := aggregate.Playable(res, app.sources.NameFor)
		if len(playSources) == 0 {
			return fmt.Errorf("%s has no playable m3u8 sources", res.Main.Name)
		}

		key := historyKey(req, res.Main)
		sourceIdx := app.history.SourceIndex(key)
		if cmd.Flags().Changed("source") {
			sourceIdx, _ = cmd.Flags().GetInt("source")
		}
		if sourceIdx < 0 || sourceIdx >= len(playSources) {
			sourceIdx = 0
		}
		source := playSources[sourceIdx]

		episodeIdx := app.history.EpisodeIndex(key)
		if cmd.Flags().Changed("episode") {
			n, _ := cmd.Flags().GetInt("episode")
			episodeIdx = n - 1
		}
		if episodeIdx < 0 || episodeIdx >= len(source.Episodes) {
			return fmt.Errorf("episode %d out of range (1-%d)", episodeIdx+1, len(source.Episodes))
		}
		episode := source.Episodes[episodeIdx]

		item := res.Main.CatalogItem
		item.ID = key
		if err := app.history.Add(history.Entry{
			CatalogItem:  item,
			EpisodeIndex: episodeIdx,
			EpisodeName:  episode.Title,
			SourceIndex:  sourceIdx,
		}); err != nil {
			logger.Warn("failed to record history", "id", key, "error", err)
		}
		if err := app.history.SetSourceIndex(key, sourceIdx); err != nil {
			logger.Warn("failed to remember source", "id", key, "error", err)
		}
		if err := app.history.SetEpisodeIndex(key, episodeIdx); err != nil {
			logger.Warn("failed to remember episode", "id", key, "error", err)
		}

		fmt.Printf("%s %s\n", ui.NameStyle.Render(res.Main.Name), ui.MetadataStyle.Render(source.Name+" · "+episode.Title))
		fmt.Println(episode.URL)

		if copyURL, _ := cmd.Flags().GetBool("copy"); copyURL {
			if err := app.clipboard.Copy(cmd.Context(), episode.URL); err != nil {
				return err
			}
			fmt.Println(ui.HelpStyle.Render("copied to clipboard"))
		}
		if open, _ := cmd.Flags().GetBool("open"); open {
			if err := browser.OpenURL(episode.URL); err != nil {
				return fmt.Errorf("failed to open browser: %w", err)
			}
		}
		if watch, _ := cmd.Flags().GetBool("watch"); watch {
			offset := app.history.Progress(key, episodeIdx)
			return app.player.Play(cmd.Context(), episode.URL, player.PlayOptions{
				StartTime: time.Duration(offset * float64(time.Second)),
				Title:     res.Main.Name + " - " + episode.Title,
				UserAgent: cfg.Gateway.UserAgent,
			})
		}
		return nil
	},
}

// historyKey is the id session state is stored under: the metadata id when
// known, otherwise the backend id
func historyKey(req aggregate.Request, main *media.DetailRecord) string {
	if main.MetadataID != "" {
		return main.MetadataID
	}
	if req.OriginAPI == "" && req.ID != "" {
		return req.ID
	}
	return main.ID
}

var hotCmd = &cobra.Command{
	Use:   "hot",
	Short: "List trending titles from the metadata service",
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		tag, _ := cmd.Flags().GetString("tag")
		limit, _ := cmd.Flags().GetInt("limit")

		items, err := app.metadata.Hot(cmd.Context(), kind, tag, limit)
		if err != nil {
			return fmt.Errorf("failed to fetch hot list: %w", err)
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(items)
		}
		fmt.Print(ui.Catalog(fmt.Sprintf("Hot %s · %s", valueOr(kind, "movie"), valueOr(tag, "热门")), items))
		return nil
	},
}

var imageCmd = &cobra.Command{
	Use:   "image <url>",
	Short: "Resolve a poster through the proxy and search fallbacks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keyword, _ := cmd.Flags().GetString("keyword")

		res, err := app.images.Resolve(cmd.Context(), args[0], keyword)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(res)
		}
		fmt.Print(ui.Image(res))
		return nil
	},
}

func init() {
	searchCmd.Flags().Bool("json", false, "print as JSON")

	for _, c := range []*cobra.Command{detailCmd, playCmd} {
		c.Flags().String("api", "", "backend API the id belongs to")
		c.Flags().String("title", "", "title to aggregate by (the id is then a metadata id)")
	}
	detailCmd.Flags().Bool("json", false, "print as JSON")

	playCmd.Flags().IntP("source", "s", 0, "play-source index (default: last used)")
	playCmd.Flags().IntP("episode", "e", 1, "episode number (default: last played)")
	playCmd.Flags().BoolP("copy", "c", false, "copy the stream URL to the clipboard")
	playCmd.Flags().BoolP("open", "o", false, "open the stream URL in the browser")
	playCmd.Flags().BoolP("watch", "w", false, "play with mpv, vlc or iina")

	hotCmd.Flags().StringP("kind", "k", "movie", "catalog kind (movie, tv)")
	hotCmd.Flags().StringP("tag", "t", "热门", "catalog tag")
	hotCmd.Flags().IntP("limit", "n", 20, "number of titles")
	hotCmd.Flags().Bool("json", false, "print as JSON")

	imageCmd.Flags().StringP("keyword", "k", "", "title to search an image for when every URL fails")
	imageCmd.Flags().Bool("json", false, "print as JSON")
}
