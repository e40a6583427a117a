package dictionary

import (
	"strings"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Greek letters appear in target and payload names ("FRα", "β-glucuronide").
// NFKC leaves them alone, so they are spelled out before matching.
var letterReplacer = strings.NewReplacer(
	"α", "alpha",
	"β", "beta",
	"γ", "gamma",
	"δ", "delta",
	"κ", "kappa",
	"œ", "oe",
	"æ", "ae",
)

var dashReplacer = strings.NewReplacer(
	"‐", "-", "‑", "-", "‒", "-", "–", "-", "—", "-", "−", "-",
)

// NormalizeCorpus joins the parts and folds them to NFKC lowercase with
// collapsed whitespace. Unicode dashes become ASCII hyphens.
func NormalizeCorpus(parts ...string) string {
	joined := strings.Join(parts, " ")
	if s, _, err := transform.String(norm.NFKC, joined); err == nil {
		joined = s
	}
	joined = strings.ToLower(joined)
	joined = letterReplacer.Replace(joined)
	joined = dashReplacer.Replace(joined)
	return strings.Join(strings.Fields(joined), " ")
}
