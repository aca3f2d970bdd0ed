package publisher

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"

	"github.com/ckough/pagesmith/internal/service/webjob"
	"github.com/ckough/pagesmith/pkg/util"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(htmlrenderer.WithUnsafe()),
)

// blockTagPattern matches a block-level opening tag anywhere in the body.
var blockTagPattern = regexp.MustCompile(`(?i)<(p|div|h[1-6]|ul|ol|table|section|article|blockquote|figure|pre)(\s|>)`)

var closingParagraph = regexp.MustCompile(`(?i)</p>`)

// LooksLikeMarkup reports whether a body already contains block-level markup.
// The declared format alone is not trusted; mislabeled blocks still render
// safely because conversion is skipped for anything that sniffs as markup.
func LooksLikeMarkup(body string) bool {
	return blockTagPattern.MatchString(body)
}

// RenderBody converts a block body to final markup. Markdown and plain text go
// through CommonMark+GFM conversion; anything already markup passes through.
func RenderBody(format webjob.BodyFormat, body string) (string, error) {
	if format == webjob.FormatHTML || LooksLikeMarkup(body) {
		return body, nil
	}

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("markdown conversion failed: %w", err)
	}
	return buf.String(), nil
}

// AssembleBlock produces the final markup for one block: markup conversion
// followed by one splice per binding, in binding order. Each binding sees the
// markup as modified by the previous one.
func AssembleBlock(block Block, resolved map[string]ResolvedMedia) (string, error) {
	markup, err := RenderBody(block.Format, block.Body)
	if err != nil {
		return "", err
	}

	for _, binding := range block.Bindings {
		media, ok := resolved[binding.AssetID]
		if !ok {
			return "", fmt.Errorf("binding references unresolved asset %q", binding.AssetID)
		}
		markup = splice(markup, mediaFragment(media, binding), binding.Placement)
	}

	return markup, nil
}

// mediaFragment builds the markup fragment for one resolved asset: a figure
// tagged with the asset's intent, optional alignment/size modifiers, the image
// itself (link-wrapped when requested), and a trailing caption when present.
func mediaFragment(media ResolvedMedia, binding MediaBinding) string {
	classes := []string{"media", "media--" + media.Intent}
	if binding.Alignment != "" {
		classes = append(classes, "align-"+binding.Alignment)
	}
	if binding.Size != "" {
		classes = append(classes, "size-"+binding.Size)
	}

	img := fmt.Sprintf(`<img src="%s" alt="%s">`, media.RemoteURL, util.EscapeAttr(media.Alt))
	if binding.LinkTo != "" {
		img = fmt.Sprintf(`<a href="%s">%s</a>`, binding.LinkTo, img)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<figure class="%s">%s`, strings.Join(classes, " "), img)
	if media.Caption != "" {
		fmt.Fprintf(&sb, `<figcaption>%s</figcaption>`, media.Caption)
	}
	sb.WriteString(`</figure>`)
	return sb.String()
}

func splice(markup, fragment string, placement Placement) string {
	switch placement {
	case PlaceAbove:
		return fragment + "\n" + markup
	case PlaceInline:
		// Insert after the first closing paragraph boundary; without one,
		// fall back to appending.
		if loc := closingParagraph.FindStringIndex(markup); loc != nil {
			return markup[:loc[1]] + "\n" + fragment + markup[loc[1]:]
		}
		fallthrough
	default: // PlaceBelow
		return markup + "\n" + fragment
	}
}
