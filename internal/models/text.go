package models

import (
	"strings"

	"golang.org/x/text/width"
)

// NormalizeText folds full-width digits and latin letters to their
// half-width form and trims surrounding whitespace. Katakana keeps its
// full-width form.
func NormalizeText(s string) string {
	return strings.TrimSpace(width.Fold.String(s))
}
