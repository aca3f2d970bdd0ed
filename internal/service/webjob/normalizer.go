package webjob

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ckough/pagesmith/pkg/util"
)

// RenderedPage is one canonical page descriptor parsed from renderer output.
type RenderedPage struct {
	SourceKey       string
	Title           string
	MetaTitle       string
	MetaDescription string
	Format          BodyFormat
	Body            string
}

type rawPage struct {
	SourceKey       string `json:"sourceKey"`
	Title           string `json:"title"`
	MetaTitle       string `json:"metaTitle"`
	MetaDescription string `json:"metaDescription"`
	BodyHTML        string `json:"bodyHtml"`
	BodyMarkdown    string `json:"bodyMarkdown"`
}

// Normalize parses raw renderer output into an ordered page list. It tries
// strict JSON first, then a sectioned-markdown fallback. Anything it cannot
// parse yields zero pages; callers treat that as a hard input-format error
// rather than letting the normalizer guess.
func Normalize(raw string) []RenderedPage {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	if pages, ok := normalizeJSON(trimmed); ok {
		return pages
	}
	return normalizeSections(trimmed)
}

func normalizeJSON(raw string) ([]RenderedPage, bool) {
	var rawPages []rawPage

	switch raw[0] {
	case '{':
		var envelope struct {
			Pages []rawPage `json:"pages"`
		}
		if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
			return nil, false
		}
		rawPages = envelope.Pages
	case '[':
		if err := json.Unmarshal([]byte(raw), &rawPages); err != nil {
			return nil, false
		}
	default:
		return nil, false
	}

	if len(rawPages) == 0 {
		// Parsed as JSON but carries no pages; don't fall through to the
		// markdown parser, it would only misread the braces.
		return nil, true
	}

	var pages []RenderedPage
	for _, rp := range rawPages {
		page, err := canonicalize(rp)
		if err != nil {
			// One malformed page descriptor invalidates the whole document.
			return nil, true
		}
		pages = append(pages, page)
	}
	return pages, true
}

func canonicalize(rp rawPage) (RenderedPage, error) {
	if rp.SourceKey == "" {
		return RenderedPage{}, fmt.Errorf("page descriptor has no sourceKey")
	}

	hasHTML := strings.TrimSpace(rp.BodyHTML) != ""
	hasMarkdown := strings.TrimSpace(rp.BodyMarkdown) != ""
	if hasHTML == hasMarkdown {
		return RenderedPage{}, fmt.Errorf("page %q must carry exactly one of bodyHtml or bodyMarkdown", rp.SourceKey)
	}

	page := RenderedPage{
		SourceKey:       rp.SourceKey,
		Title:           rp.Title,
		MetaTitle:       rp.MetaTitle,
		MetaDescription: rp.MetaDescription,
	}
	if hasHTML {
		page.Format = FormatHTML
		page.Body = rp.BodyHTML
	} else {
		page.Format = FormatMarkdown
		page.Body = rp.BodyMarkdown
	}
	return page, nil
}

// normalizeSections parses the semi-structured markdown fallback: every
// second-level heading starts a page, its slugified text is the source key,
// and the markdown below it is the page body.
func normalizeSections(raw string) []RenderedPage {
	lines := strings.Split(raw, "\n")

	var pages []RenderedPage
	var current *RenderedPage
	var body []string
	keys := make(map[string]int)

	flush := func() {
		if current == nil {
			return
		}
		current.Body = strings.TrimSpace(strings.Join(body, "\n"))
		if current.Body != "" {
			pages = append(pages, *current)
		}
		current = nil
		body = nil
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "## ") {
			flush()
			title := strings.TrimSpace(strings.TrimPrefix(line, "## "))
			key := util.Slugify(title)
			if key == "" {
				return nil
			}
			keys[key]++
			if n := keys[key]; n > 1 {
				key = fmt.Sprintf("%s-%d", key, n)
			}
			current = &RenderedPage{
				SourceKey: key,
				Title:     title,
				Format:    FormatMarkdown,
			}
			continue
		}
		if current != nil {
			body = append(body, line)
		}
	}
	flush()

	return pages
}
