package article

import (
	"sort"
	"strings"
)

type TranslationStatus string

const (
	TranslationPending   TranslationStatus = "pending"
	TranslationDeepLDone TranslationStatus = "deepl_done"
	TranslationReviewed  TranslationStatus = "reviewed"
	TranslationApproved  TranslationStatus = "approved"
)

var translationRank = map[TranslationStatus]int{
	TranslationPending:   0,
	TranslationDeepLDone: 1,
	TranslationReviewed:  2,
	TranslationApproved:  3,
}

func ParseTranslationStatus(raw string) (TranslationStatus, error) {
	status := TranslationStatus(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := translationRank[status]; !ok {
		return "", Validationf("invalid translation status %q", raw)
	}
	return status, nil
}

// Translated reports whether machine translation has finished for the language.
func (s TranslationStatus) Translated() bool {
	return translationRank[s] >= translationRank[TranslationDeepLDone]
}

// AtLeast reports whether s is the same as or later than other.
func (s TranslationStatus) AtLeast(other TranslationStatus) bool {
	return translationRank[s] >= translationRank[other]
}

// TranslationsComplete is true only when every requested language reached deepl_done or later.
// Languages that were not requested never block.
func TranslationsComplete(languages map[string]bool, statuses map[string]TranslationStatus) bool {
	for _, code := range TranslationTargets(languages) {
		status, ok := statuses[code]
		if !ok || !status.Translated() {
			return false
		}
	}
	return true
}

// MissingTranslations returns requested languages that still need machine translation.
func MissingTranslations(languages map[string]bool, statuses map[string]TranslationStatus) []string {
	out := make([]string, 0, len(languages))
	for _, code := range TranslationTargets(languages) {
		if status, ok := statuses[code]; ok && status.Translated() {
			continue
		}
		out = append(out, code)
	}
	return out
}

// ResolveTranslationTargets picks the languages for a translation trigger.
// An explicit subset wins; otherwise every requested language still missing a translation.
func ResolveTranslationTargets(explicit []string, languages map[string]bool, statuses map[string]TranslationStatus) ([]string, error) {
	if len(explicit) == 0 {
		missing := MissingTranslations(languages, statuses)
		if len(missing) == 0 {
			return nil, ErrNoOp
		}
		return missing, nil
	}

	seen := make(map[string]struct{}, len(explicit))
	out := make([]string, 0, len(explicit))
	for _, raw := range explicit {
		code, err := NormalizeLanguageCode(raw)
		if err != nil {
			return nil, err
		}
		if code == MasterLanguage {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	if len(out) == 0 {
		return nil, ErrNoOp
	}
	sort.Strings(out)
	return out, nil
}
