// Package credibility implements the pure source-credibility classification
// of the data model: a function of (source_name, kind) alone, so that
// identical inputs always produce identical scores (testable property 7).
package credibility

import "strings"

type Level string

const (
	LevelHigh       Level = "high"
	LevelMediumHigh Level = "medium-high"
	LevelMedium     Level = "medium"
	LevelLow        Level = "low"
)

// Classification is the output of Classify: a pure function of a source name
// and item kind. Treat the underlying table as configuration (spec.md §9) —
// the keyword lists below are illustrative examples, not an exhaustive registry.
type Classification struct {
	Score          float64
	Level          Level
	IsVerified     bool
}

var govSources = []string{
	"pib", "who", "eci", "ministry", "government", "gov.", "un.org", "unicef",
}

var factCheckSources = []string{
	"altnews", "boomlive", "snopes", "reuters fact check", "factcheck.org",
	"politifact", "google_factcheck",
}

var tier1News = []string{
	"bbc", "reuters", "the hindu", "ndtv", "ap", "associated press",
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// Classify returns the credibility classification for a source, given its
// name and the kind of item it produced (news, gov, factcheck, social).
func Classify(sourceName, kind string) Classification {
	name := strings.ToLower(strings.TrimSpace(sourceName))
	kind = strings.ToLower(strings.TrimSpace(kind))

	switch {
	case kind == "gov" || containsAny(name, govSources):
		return cls(0.95, LevelHigh)
	case kind == "factcheck" || containsAny(name, factCheckSources):
		return cls(0.90, LevelHigh)
	case containsAny(name, tier1News):
		return cls(0.80, LevelMediumHigh)
	case kind == "social":
		return cls(0.35, LevelLow)
	case kind == "news":
		return cls(0.60, LevelMedium)
	default:
		return cls(0.60, LevelMedium)
	}
}

func cls(score float64, level Level) Classification {
	return Classification{Score: score, Level: level, IsVerified: score >= 0.85}
}
