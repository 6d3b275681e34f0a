package domain

import (
	"strconv"
	"strings"
)

// DefaultSizeBudget is the attachment limit the pipeline shrinks videos to (8 MiB).
const DefaultSizeBudget int64 = 8 * 1024 * 1024

// PolicyName names a FormatPolicy for logs and tests.
type PolicyName string

const (
	PolicyStandard PolicyName = "standard"
	PolicyDegraded PolicyName = "degraded"
)

// FormatPolicy is an ordered list of yt-dlp format selectors. The first
// selector the extractor can satisfy wins. Values are immutable: build a new
// one per request instead of editing a shared instance.
type FormatPolicy struct {
	name      PolicyName
	selectors []string
}

// StandardPolicy prefers mp4 streams whose reported size fits the budget and
// falls back to the best available stream.
func StandardPolicy(budget int64) FormatPolicy {
	limit := "filesize<=" + formatSizeLimit(budget)
	return FormatPolicy{
		name: PolicyStandard,
		selectors: []string{
			"mp4[" + limit + "]",
			"best[ext=mp4][" + limit + "]",
			"best[" + limit + "]",
			"best",
		},
	}
}

// DegradedPolicy ignores the size cap and takes the lowest-quality stream.
func DegradedPolicy() FormatPolicy {
	return FormatPolicy{
		name:      PolicyDegraded,
		selectors: []string{"worst[ext=mp4]", "worst"},
	}
}

// Name returns the policy name.
func (p FormatPolicy) Name() PolicyName {
	return p.name
}

// Selectors returns a copy of the ordered selector list.
func (p FormatPolicy) Selectors() []string {
	out := make([]string, len(p.selectors))
	copy(out, p.selectors)
	return out
}

// IsDegraded reports whether this is the worst-quality fallback policy.
func (p FormatPolicy) IsDegraded() bool {
	return p.name == PolicyDegraded
}

// String renders the selector chain in yt-dlp's "-f a/b/c" syntax.
func (p FormatPolicy) String() string {
	return strings.Join(p.selectors, "/")
}

// formatSizeLimit renders a byte count the way yt-dlp filters expect it,
// using the M suffix when the budget is a whole number of MiB.
func formatSizeLimit(budget int64) string {
	const mib = 1024 * 1024
	if budget > 0 && budget%mib == 0 {
		return strconv.FormatInt(budget/mib, 10) + "M"
	}
	return strconv.FormatInt(budget, 10)
}
