// Package ui renders CLI output with lipgloss.
package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Oxocarbon palette
var (
	Base01 = lipgloss.Color("#393939") // borders
	Base02 = lipgloss.Color("#525252")
	Base03 = lipgloss.Color("#767676") // muted
	Base04 = lipgloss.Color("#dde1e6") // secondary foreground
	Base05 = lipgloss.Color("#f2f4f8") // primary foreground
	White  = lipgloss.Color("#ffffff")

	Blue    = lipgloss.Color("#78a9ff")
	Pink    = lipgloss.Color("#ee5396")
	Red     = lipgloss.Color("#ff5252")
	Cyan    = lipgloss.Color("#33b1ff")
	Green   = lipgloss.Color("#42be65")
	Purple  = lipgloss.Color("#be95ff") // main accent
	Mauve   = lipgloss.Color("#d1aaff")
	Unknown = lipgloss.Color("#A0AEC0")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(White).
			Background(Purple).
			Padding(0, 1).
			Bold(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(Mauve).
			Bold(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(Base03).
			Italic(true)

	NameStyle = lipgloss.NewStyle().
			Foreground(Base05).
			Bold(true)

	MetadataStyle = lipgloss.NewStyle().
			Foreground(Base04)

	URLStyle = lipgloss.NewStyle().
			Foreground(Cyan).
			Italic(true)

	ScoreStyle = lipgloss.NewStyle().
			Foreground(Pink).
			Bold(true)

	HeaderStyle = lipgloss.NewStyle().
			Foreground(Purple).
			Bold(true).
			Underline(true).
			MarginTop(1)

	BadgeStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Bold(true)

	SynopsisStyle = lipgloss.NewStyle().
			Foreground(Base04).
			Italic(true)

	ItemStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(Base02).
			BorderLeft(true).
			BorderTop(false).
			BorderRight(false).
			BorderBottom(false).
			PaddingLeft(1).
			MarginLeft(1)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Red).
			Bold(true)
)

// DisableColor strips colors from every style
func DisableColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// StatusColor returns the badge color for a status word
func StatusColor(status string) lipgloss.Color {
	switch status {
	case "Online", "active", "loaded":
		return Green
	case "Offline", "error":
		return Red
	case "disabled", "placeholder":
		return Base03
	case "builtin":
		return Purple
	case "metadata-service":
		return Blue
	case "backend-index":
		return Cyan
	default:
		return Unknown
	}
}

// Badge renders status as a colored badge
func Badge(status string) string {
	return BadgeStyle.Foreground(StatusColor(status)).Render(status)
}
