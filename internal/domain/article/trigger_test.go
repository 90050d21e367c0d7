package article

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeCreateValidation(t *testing.T) {
	testCases := []struct {
		name    string
		input   CreateInput
		wantErr bool
	}{
		{name: "prompt with text", input: CreateInput{TriggerType: "prompt", Text: "Energiewende"}},
		{name: "default trigger is prompt", input: CreateInput{Text: "X"}},
		{name: "prompt without text", input: CreateInput{TriggerType: "prompt", Text: "   "}, wantErr: true},
		{name: "url without urls", input: CreateInput{TriggerType: "url", Text: ""}, wantErr: true},
		{name: "url with urls", input: CreateInput{TriggerType: "url", URLs: []string{"https://example.com/a"}}},
		{name: "url with invalid url", input: CreateInput{TriggerType: "url", URLs: []string{"ftp://example.com"}}, wantErr: true},
		{name: "rss with feed url", input: CreateInput{TriggerType: "rss", URLs: []string{"https://example.com/feed.xml"}}},
		{name: "rss without anything", input: CreateInput{TriggerType: "rss"}, wantErr: true},
		{name: "calendar needs text", input: CreateInput{TriggerType: "calendar"}, wantErr: true},
		{name: "unknown trigger", input: CreateInput{TriggerType: "fax", Text: "x"}, wantErr: true},
		{name: "bad language", input: CreateInput{Text: "x", Languages: map[string]bool{"xx": true}}, wantErr: true},
		{name: "bad image type", input: CreateInput{Text: "x", ImageType: "oil"}, wantErr: true},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := NormalizeCreate(testCase.input)
			if testCase.wantErr {
				if err == nil {
					t.Fatalf("NormalizeCreate() error = nil")
				}
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("NormalizeCreate() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeCreate() error = %v", err)
			}
		})
	}
}

func TestNormalizeCreateDefaults(t *testing.T) {
	got, err := NormalizeCreate(CreateInput{
		TriggerType: "prompt",
		Text:        "  Wasserstoff in der Industrie  ",
		Languages:   map[string]bool{"EN": true, "de": false},
	})
	if err != nil {
		t.Fatalf("NormalizeCreate() error = %v", err)
	}
	if got.Title != "Wasserstoff in der Industrie" {
		t.Fatalf("Title = %q", got.Title)
	}
	if got.Category != DefaultCategory {
		t.Fatalf("Category = %q", got.Category)
	}
	if !got.Languages["de"] || !got.Languages["en"] || len(got.Languages) != 2 {
		t.Fatalf("Languages = %v", got.Languages)
	}
	if got.ContentHash == "" || len(got.ContentHash) != 64 {
		t.Fatalf("ContentHash = %q", got.ContentHash)
	}

	defaults, err := NormalizeCreate(CreateInput{Text: "x"})
	if err != nil {
		t.Fatalf("NormalizeCreate() error = %v", err)
	}
	if len(defaults.Languages) != 4 {
		t.Fatalf("default languages = %v", defaults.Languages)
	}
}

func TestTitleFromInput(t *testing.T) {
	long := strings.Repeat("ä", 130)
	if got := TitleFromInput(long, nil); len([]rune(got)) != 120 {
		t.Fatalf("TitleFromInput() rune len = %d, want 120", len([]rune(got)))
	}
	if got := TitleFromInput("", []string{"https://example.com/x"}); got != "https://example.com/x" {
		t.Fatalf("TitleFromInput(url) = %q", got)
	}
	if got := TitleFromInput("", nil); got != DefaultTitle {
		t.Fatalf("TitleFromInput(empty) = %q", got)
	}
}

func TestContentHashIgnoresWhitespaceAndURLOrder(t *testing.T) {
	a := ContentHash(TriggerURL, "Neue  Studie", []string{"https://b.example", "https://a.example"})
	b := ContentHash(TriggerURL, "neue studie", []string{"https://a.example", "https://b.example"})
	if a != b {
		t.Fatalf("ContentHash() differs: %s vs %s", a, b)
	}
	if a == ContentHash(TriggerPrompt, "neue studie", []string{"https://a.example", "https://b.example"}) {
		t.Fatalf("ContentHash() must include the trigger type")
	}
}

func TestTranslationTargets(t *testing.T) {
	got := TranslationTargets(map[string]bool{"de": true, "fr": true, "en": true, "es": false})
	if strings.Join(got, ",") != "en,fr" {
		t.Fatalf("TranslationTargets() = %v", got)
	}
}
