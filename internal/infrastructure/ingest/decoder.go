package ingest

import (
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/reviewer-invitations/internal/core/domain"
)

// Decoder reads reviewer-suggestion payloads. Files ending in .yaml or .yml
// are parsed as YAML, everything else as JSON.
type Decoder struct{}

func NewDecoder() *Decoder {
	return &Decoder{}
}

func (Decoder) Decode(filename string, r io.Reader) (domain.SuggestionPayload, error) {
	var payload domain.SuggestionPayload
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(r).Decode(&payload); err != nil {
			return domain.SuggestionPayload{}, domain.WrapError(domain.ErrInvalidInput, "decode yaml payload", err)
		}
	default:
		if err := json.NewDecoder(r).Decode(&payload); err != nil {
			return domain.SuggestionPayload{}, domain.WrapError(domain.ErrInvalidInput, "decode json payload", err)
		}
	}

	payload.Manuscript.Abstract = StripHTML(payload.Manuscript.Abstract)
	payload.Manuscript.Title = strings.TrimSpace(payload.Manuscript.Title)
	return payload, nil
}

// StripHTML returns the text content of an HTML fragment with whitespace
// collapsed. Plain text passes through unchanged apart from whitespace.
func StripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	tokenizer := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	skip := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "script", "style":
				skip++
			case "p", "br", "div", "li":
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "script", "style":
				if skip > 0 {
					skip--
				}
			case "p", "div", "li":
				b.WriteByte(' ')
			}
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(tokenizer.Text())
			}
		}
	}
}
