package drift

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/timmy/cryptoetl/internal/domain"
)

// DefaultThreshold is the minimum similarity for a rename hint.
const DefaultThreshold = 0.8

// Detector compares observed records against an expected field layout.
type Detector struct {
	threshold float64
	now       func() time.Time
}

// NewDetector creates a Detector. A threshold outside (0,1] falls back to DefaultThreshold.
func NewDetector(threshold float64) *Detector {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Detector{threshold: threshold, now: time.Now}
}

// Similarity returns the matching-blocks ratio 2*M/T of two strings, in [0,1].
func Similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	m := difflib.NewMatcher(splitRunes(a), splitRunes(b))
	return m.Ratio()
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// Detect builds a drift report for one observed record.
// Parameters:
//   - source: source name stamped on the report.
//   - expected: declared field layout.
//   - observed: one decoded raw item.
//
// Returns:
//   - *domain.SchemaDriftReport: always non-nil; HasDrift is true when any warning was produced.
func (d *Detector) Detect(source string, expected Schema, observed map[string]interface{}) *domain.SchemaDriftReport {
	var missing, common []string
	for _, key := range expected.Keys() {
		if _, ok := observed[key]; ok {
			common = append(common, key)
		} else {
			missing = append(missing, key)
		}
	}

	var extra []string
	for key := range observed {
		if _, ok := expected[key]; !ok {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)

	var warnings []string
	renames := domain.JSONMap{}

	for _, key := range missing {
		best, score := "", 0.0
		for _, candidate := range extra {
			if s := Similarity(key, candidate); s > score {
				best, score = candidate, s
			}
		}
		if best != "" && score >= d.threshold {
			renames[key] = best
			warnings = append(warnings, fmt.Sprintf("Possible field rename: '%s' -> '%s' (confidence: %.2f)", key, best, score))
		}
	}

	for _, key := range common {
		value := observed[key]
		if value == nil {
			continue
		}
		if kind := KindOf(value); !expected[key].Accepts(kind) {
			warnings = append(warnings, fmt.Sprintf("Type mismatch for '%s': expected %s, got %s", key, expected[key], kind))
		}
	}

	confidence := 1.0
	if len(expected) > 0 {
		confidence = float64(len(common)+len(renames)) / float64(len(expected))
	}

	return &domain.SchemaDriftReport{
		Source:         source,
		DetectedAt:     d.now().UTC(),
		ExpectedSchema: schemaToJSON(expected),
		ActualSchema:   observedShape(observed),
		Confidence:     confidence,
		Warnings:       domain.StringArray(warnings),
		Renames:        renames,
	}
}

func schemaToJSON(s Schema) domain.JSONMap {
	out := make(domain.JSONMap, len(s))
	for key, set := range s {
		kinds := make([]string, len(set))
		for i, k := range set {
			kinds[i] = string(k)
		}
		out[key] = kinds
	}
	return out
}

func observedShape(observed map[string]interface{}) domain.JSONMap {
	out := make(domain.JSONMap, len(observed))
	for key, value := range observed {
		out[key] = string(KindOf(value))
	}
	return out
}

// Summary joins a report's warnings for a single log line.
func Summary(r *domain.SchemaDriftReport) string {
	if !r.HasDrift() {
		return ""
	}
	return strings.Join(r.Warnings, "; ")
}
