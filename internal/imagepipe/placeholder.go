package imagepipe

import (
	_ "embed"
	"encoding/base64"
)

// PlaceholderSVG is the static poster shown when every stage failed
//
//go:embed placeholder.svg
var PlaceholderSVG []byte

// PlaceholderContentType is the MIME type of PlaceholderSVG
const PlaceholderContentType = "image/svg+xml"

// PlaceholderDataURL returns the placeholder as a data: URL
func PlaceholderDataURL() string {
	return "data:" + PlaceholderContentType + ";base64," + base64.StdEncoding.EncodeToString(PlaceholderSVG)
}
