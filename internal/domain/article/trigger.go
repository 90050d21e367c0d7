package article

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
)

const (
	MasterLanguage  = "de"
	DefaultCategory = "general"
	DefaultTitle    = "Neuer Artikel"
	maxTitleRunes   = 120
)

// DefaultLanguages is applied when a create request names no languages.
var DefaultLanguages = map[string]bool{"de": true, "en": true, "es": true, "fr": true}

type TriggerType string

const (
	TriggerPrompt   TriggerType = "prompt"
	TriggerURL      TriggerType = "url"
	TriggerRSS      TriggerType = "rss"
	TriggerCalendar TriggerType = "calendar"
	TriggerImage    TriggerType = "image"
)

func ParseTriggerType(raw string) (TriggerType, error) {
	trigger := TriggerType(strings.ToLower(strings.TrimSpace(raw)))
	switch trigger {
	case "":
		return TriggerPrompt, nil
	case TriggerPrompt, TriggerURL, TriggerRSS, TriggerCalendar, TriggerImage:
		return trigger, nil
	default:
		return "", Validationf("unknown trigger type %q", raw)
	}
}

type Source struct {
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
	Auto  bool   `json:"auto"`
}

type CreateInput struct {
	TriggerType string
	Text        string
	Category    string
	Languages   map[string]bool
	URLs        []string
	ImageType   string
}

type NewArticle struct {
	TriggerType TriggerType
	Text        string
	Category    string
	Languages   map[string]bool
	URLs        []string
	ImageType   ImageType
	Title       string
	ContentHash string
}

// NormalizeCreate validates a create request before anything is stored.
func NormalizeCreate(in CreateInput) (NewArticle, error) {
	trigger, err := ParseTriggerType(in.TriggerType)
	if err != nil {
		return NewArticle{}, err
	}

	text := strings.TrimSpace(in.Text)
	urls, err := NormalizeURLs(in.URLs)
	if err != nil {
		return NewArticle{}, err
	}

	switch trigger {
	case TriggerURL:
		if len(urls) == 0 {
			return NewArticle{}, Validationf("trigger %s requires at least one url", trigger)
		}
	case TriggerRSS:
		if text == "" && len(urls) == 0 {
			return NewArticle{}, Validationf("trigger %s requires text or a feed url", trigger)
		}
	default:
		if text == "" {
			return NewArticle{}, Validationf("trigger %s requires non-empty text", trigger)
		}
	}

	languages, err := NormalizeLanguages(in.Languages)
	if err != nil {
		return NewArticle{}, err
	}

	imageType := ImageType("")
	if strings.TrimSpace(in.ImageType) != "" {
		imageType, err = ParseImageType(in.ImageType)
		if err != nil {
			return NewArticle{}, err
		}
	}

	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = DefaultCategory
	}

	return NewArticle{
		TriggerType: trigger,
		Text:        text,
		Category:    category,
		Languages:   languages,
		URLs:        urls,
		ImageType:   imageType,
		Title:       TitleFromInput(text, urls),
		ContentHash: ContentHash(trigger, text, urls),
	}, nil
}

func NormalizeURLs(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, item := range raw {
		candidate := strings.TrimSpace(item)
		if candidate == "" {
			continue
		}
		parsed, err := url.Parse(candidate)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return nil, Validationf("invalid url %q", candidate)
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}
		out = append(out, candidate)
	}
	return out, nil
}

// NormalizeLanguages lowercases codes, validates them and forces the master language on.
func NormalizeLanguages(raw map[string]bool) (map[string]bool, error) {
	if len(raw) == 0 {
		raw = DefaultLanguages
	}

	out := make(map[string]bool, len(raw)+1)
	for code, requested := range raw {
		normalized, err := NormalizeLanguageCode(code)
		if err != nil {
			return nil, err
		}
		out[normalized] = out[normalized] || requested
	}
	out[MasterLanguage] = true
	return out, nil
}

func NormalizeLanguageCode(code string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(code))
	if len(normalized) != 2 {
		return "", Validationf("language code %q must be a two letter ISO 639-1 code", code)
	}
	tag, err := language.Parse(normalized)
	if err != nil {
		return "", Validationf("unknown language code %q", code)
	}
	base, _ := tag.Base()
	if base.String() != normalized {
		return "", Validationf("unknown language code %q", code)
	}
	return normalized, nil
}

// TranslationTargets returns the requested non-master languages in stable order.
func TranslationTargets(languages map[string]bool) []string {
	out := make([]string, 0, len(languages))
	for code, requested := range languages {
		if requested && code != MasterLanguage {
			out = append(out, code)
		}
	}
	sort.Strings(out)
	return out
}

func TitleFromInput(text string, urls []string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed != "" {
		if utf8.RuneCountInString(trimmed) > maxTitleRunes {
			runes := []rune(trimmed)
			trimmed = strings.TrimSpace(string(runes[:maxTitleRunes]))
		}
		return trimmed
	}
	if len(urls) > 0 {
		return urls[0]
	}
	return DefaultTitle
}

func ContentHash(trigger TriggerType, text string, urls []string) string {
	sorted := append([]string(nil), urls...)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(string(trigger)))
	h.Write([]byte{'\n'})
	h.Write([]byte(strings.ToLower(strings.Join(strings.Fields(text), " "))))
	for _, item := range sorted {
		h.Write([]byte{'\n'})
		h.Write([]byte(strings.ToLower(item)))
	}
	return hex.EncodeToString(h.Sum(nil))
}
