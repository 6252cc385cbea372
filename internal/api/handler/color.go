package handler

import (
	"strings"

	"github.com/openspool/printtrack/internal/domain"
)

// colorModeKeys lists option keywords that carry color selection, in lookup
// order. Vendors disagree on the keyword, so all known spellings are checked.
var colorModeKeys = []string{
	"print-color-mode",
	"ColorModel",
	"output-mode",
	"OutputMode",
	"HPColorMode",
	"CNColorMode",
	"SelectColor",
}

// monoValues are option values that unambiguously mean grayscale output.
var monoValues = map[string]bool{
	"monochrome":    true,
	"gray":          true,
	"grayscale":     true,
	"greyscale":     true,
	"black":         true,
	"mono":          true,
	"kgray":         true,
	"cmygray":       true,
	"grayscaleonly": true,
}

// detectColorMode classifies a submission from its print options for page
// accounting. Anything not clearly grayscale, including "auto", is billed as
// color since the printer may produce color pages.
func detectColorMode(options map[string]string) domain.ColorMode {
	for _, key := range colorModeKeys {
		value, ok := options[key]
		if !ok {
			continue
		}
		if monoValues[strings.ToLower(value)] {
			return domain.ColorModeMono
		}
		return domain.ColorModeColor
	}

	return domain.ColorModeColor
}
