package article

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionRevise  Decision = "revise"
	DecisionReject  Decision = "reject"
)

var decisionAliases = map[string]Decision{
	"approve":       DecisionApprove,
	"freigeben":     DecisionApprove,
	"revise":        DecisionRevise,
	"ueberarbeiten": DecisionRevise,
	"überarbeiten":  DecisionRevise,
	"reject":        DecisionReject,
	"ablehnen":      DecisionReject,
}

// ParseDecision accepts the English names and the German labels the models tend to answer with.
func ParseDecision(raw string) (Decision, error) {
	decision, ok := decisionAliases[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", Validationf("unknown recommendation %q", raw)
	}
	return decision, nil
}

// IsDeviation is true when the editor decided differently from the supervisor.
func IsDeviation(recommendation Decision, decision Decision) bool {
	return decision != "" && recommendation != decision
}

// DeviationRate returns deviations/total*100, and 0 when nothing was decided yet.
func DeviationRate(total int64, deviations int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(deviations) / float64(total) * 100
}

func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

const (
	tonalityInitialWeight = 0.5
	tonalityBoost         = 0.02
	tonalityDecay         = 0.005
	tonalityFloor         = 0.1
	tonalityConfirmed     = "confirmed by editor"
)

type TonalityEntry struct {
	ID            uint64
	Trait         string
	Value         string
	Weight        float64
	EvidenceCount int
}

func ValidateWeight(weight float64) error {
	if math.IsNaN(weight) || weight < 0 || weight > 1 {
		return Validationf("weight must be within 0..1, got %v", weight)
	}
	return nil
}

func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		normalized := strings.ToLower(strings.TrimSpace(tag))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

// LearnFromApproval reinforces traits seen in an approved article and decays the rest.
// The returned slice holds every entry that changed, new ones with ID 0.
func LearnFromApproval(existing []TonalityEntry, tags []string) []TonalityEntry {
	seen := make(map[string]struct{})
	for _, tag := range NormalizeTags(tags) {
		seen[tag] = struct{}{}
	}

	out := make([]TonalityEntry, 0, len(existing)+len(seen))
	for _, entry := range existing {
		key := strings.ToLower(strings.TrimSpace(entry.Trait))
		if _, ok := seen[key]; ok {
			entry.Weight = roundWeight(math.Min(1.0, entry.Weight+tonalityBoost))
			entry.EvidenceCount++
			delete(seen, key)
		} else {
			entry.Weight = roundWeight(math.Max(tonalityFloor, entry.Weight-tonalityDecay))
		}
		out = append(out, entry)
	}

	fresh := make([]string, 0, len(seen))
	for tag := range seen {
		fresh = append(fresh, tag)
	}
	sort.Strings(fresh)
	for _, tag := range fresh {
		out = append(out, TonalityEntry{
			Trait:         tag,
			Value:         tonalityConfirmed,
			Weight:        tonalityInitialWeight,
			EvidenceCount: 1,
		})
	}
	return out
}

func roundWeight(weight float64) float64 {
	return math.Round(weight*10000) / 10000
}

// TonalityContext renders the profile block handed to the supervisor model.
func TonalityContext(entries []TonalityEntry) string {
	if len(entries) == 0 {
		return "Noch kein Tonality-Profil vorhanden. Bewerte nach allgemeinen Standards: sachlich, informativ, zugänglich."
	}

	sorted := append([]TonalityEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Weight > sorted[j].Weight })

	lines := make([]string, 0, len(sorted))
	for _, entry := range sorted {
		lines = append(lines, fmt.Sprintf("- %s: %s (Gewicht: %.1f, Belege: %d)", entry.Trait, entry.Value, entry.Weight, entry.EvidenceCount))
	}
	return strings.Join(lines, "\n")
}
