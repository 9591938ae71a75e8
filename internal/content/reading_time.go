package content

import (
	"bytes"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
)

const (
	// WordsPerMinute is the assumed reading speed.
	WordsPerMinute = 200
	// ImageSeconds is the reading time credited to each image block.
	ImageSeconds = 10
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
		goldmark.WithRendererOptions(goldmarkhtml.WithHardWraps(), goldmarkhtml.WithXHTML()),
	)
	stripPolicy  = newStripPolicy()
	renderPolicy = bluemonday.UGCPolicy()
)

func newStripPolicy() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)
	return p
}

// ComputeReadingTime returns the whole minutes needed to read blocks, rounded up.
// Text blocks contribute their word count after markup is stripped; each image
// contributes ImageSeconds. An empty sequence reads in zero minutes.
func ComputeReadingTime(blocks Blocks) int {
	words, images := 0, 0
	for _, block := range blocks {
		if block == nil {
			continue
		}
		Match(block,
			func(t TextBlock) struct{} {
				words += CountWords(t)
				return struct{}{}
			},
			func(ImageBlock) struct{} {
				images++
				return struct{}{}
			},
			func(CTABlock) struct{} { return struct{}{} },
		)
	}

	// Work in units of 1/60 word so image time stays exact.
	const perMinute = WordsPerMinute * 60
	total := words*60 + images*ImageSeconds*WordsPerMinute
	if total == 0 {
		return 0
	}
	return (total + perMinute - 1) / perMinute
}

// CountWords counts whitespace-delimited words in a text block once its markup
// is removed.
func CountWords(t TextBlock) int {
	return len(strings.Fields(PlainText(t)))
}

// PlainText returns the block's content with all markup removed.
func PlainText(t TextBlock) string {
	var markup string
	switch t.Format {
	case FormatPlain:
		return t.Content
	case FormatHTML:
		markup = t.Content
	default:
		rendered, err := renderMarkdown(t.Content)
		if err != nil {
			markup = t.Content
		} else {
			markup = rendered
		}
	}
	return html.UnescapeString(stripPolicy.Sanitize(markup))
}

// RenderText converts a text block to sanitised HTML for readers.
func RenderText(t TextBlock) (string, error) {
	switch t.Format {
	case FormatPlain:
		return "<p>" + html.EscapeString(t.Content) + "</p>", nil
	case FormatHTML:
		return renderPolicy.Sanitize(t.Content), nil
	default:
		rendered, err := renderMarkdown(t.Content)
		if err != nil {
			return "", err
		}
		return renderPolicy.Sanitize(rendered), nil
	}
}

func renderMarkdown(source string) (string, error) {
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(source), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
