package confidence

import "regexp"

type weightedTerm struct {
	re     *regexp.Regexp
	weight float64
}

func terms(weights map[string]float64) []weightedTerm {
	out := make([]weightedTerm, 0, len(weights))
	for word, w := range weights {
		out = append(out, weightedTerm{re: regexp.MustCompile(`\b` + word + `\b`), weight: w})
	}

	return out
}

// Words are matched on word boundaries so "unsure" never counts as "sure".
var keywordTerms = terms(map[string]float64{
	// high
	"definitely":     0.15,
	"certainly":      0.15,
	"absolutely":     0.15,
	"confirmed":      0.15,
	"verified":       0.15,
	"guaranteed":     0.15,
	"certain":        0.12,
	"sure":           0.12,
	"undoubtedly":    0.12,
	"unquestionably": 0.12,
	"conclusive":     0.12,
	"definitive":     0.12,
	"clear":          0.10,
	"obvious":        0.10,
	"established":    0.10,

	// medium
	"probably":   0.05,
	"likely":     0.05,
	"appears":    0.05,
	"seems":      0.05,
	"suggests":   0.05,
	"indicates":  0.05,
	"reasonable": 0.05,
	"plausible":  0.05,
	"mostly":     0.04,
	"generally":  0.04,
	"typically":  0.04,
	"expected":   0.04,

	// low
	"possibly":     -0.15,
	"maybe":        -0.15,
	"uncertain":    -0.15,
	"unclear":      -0.15,
	"unsure":       -0.15,
	"doubt":        -0.15,
	"questionable": -0.15,
	"might":        -0.12,
	"guess":        -0.12,
	"tentative":    -0.12,
	"could":        -0.10,
	"assume":       -0.10,
	"approximate":  -0.08,
	"estimated":    -0.08,
	"roughly":      -0.08,
})

const hedgePenalty = 0.10

var hedgePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:i|we)\s+(?:think|believe|suppose)\b`),
	regexp.MustCompile(`\b(?:may|might)\s+be\b`),
	regexp.MustCompile(`\b(?:could|would)\s+(?:be|suggest)\b`),
	regexp.MustCompile(`\b(?:perhaps|presumably)\b`),
}

// Searched in order; the first match wins.
var confidencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)confidence\s*:\s*(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)certainty\s*:\s*(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)probability\s*:\s*(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)score\s*:\s*(\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*%\s*(?:confident|certain|sure)`),
	regexp.MustCompile(`(?i)confidence\s+(?:of\s+|is\s+|level\s+)?(\d+(?:\.\d+)?)\s*%`),
}
