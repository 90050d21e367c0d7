package llm

import (
	"context"
	"strings"
	"unicode/utf8"

	"newsroom/internal/ports"
)

// SocialPlatforms are the platforms snippets are written for, in display order.
var SocialPlatforms = []string{"twitter", "linkedin", "instagram", "facebook"}

const socialExcerptRunes = 1000

type socialPost struct {
	Text     string   `json:"text"`
	Hashtags []string `json:"hashtags"`
}

type socialAnswer struct {
	Twitter   socialPost `json:"twitter"`
	LinkedIn  socialPost `json:"linkedin"`
	Instagram socialPost `json:"instagram"`
	Facebook  socialPost `json:"facebook"`
}

type socialPrompt struct {
	Title       string
	Lead        string
	BodyExcerpt string
	URL         string
}

type SocialWriter struct {
	client *Client
}

var _ ports.SocialWriter = (*SocialWriter)(nil)

func NewSocialWriter(client *Client) *SocialWriter {
	return &SocialWriter{client: client}
}

func (w *SocialWriter) WriteSnippets(ctx context.Context, req ports.SocialRequest) ([]ports.SocialSnippet, error) {
	var answer socialAnswer
	if err := w.client.completeJSON(ctx, "social", socialPrompt{
		Title:       req.Title,
		Lead:        req.Lead,
		BodyExcerpt: excerpt(req.Body, socialExcerptRunes),
		URL:         req.URL,
	}, "social_snippets", &answer); err != nil {
		return nil, err
	}

	posts := map[string]socialPost{
		"twitter":   answer.Twitter,
		"linkedin":  answer.LinkedIn,
		"instagram": answer.Instagram,
		"facebook":  answer.Facebook,
	}
	snippets := make([]ports.SocialSnippet, 0, len(SocialPlatforms))
	for _, platform := range SocialPlatforms {
		post := posts[platform]
		text := strings.TrimSpace(post.Text)
		if text == "" {
			continue
		}
		snippets = append(snippets, ports.SocialSnippet{
			Platform: platform,
			Text:     text,
			Hashtags: post.Hashtags,
		})
	}
	return snippets, nil
}

func excerpt(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit])
}
