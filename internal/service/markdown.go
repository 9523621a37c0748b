package service

import (
	"bytes"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// The renderer keeps goldmark's default of escaping raw HTML in lesson
// content; only markdown constructs produce tags.
var (
	lessonMarkdown     goldmark.Markdown
	lessonMarkdownOnce sync.Once
)

func markdownRenderer() goldmark.Markdown {
	lessonMarkdownOnce.Do(func() {
		lessonMarkdown = goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.DefinitionList,
			),
		)
	})
	return lessonMarkdown
}

// RenderMarkdown converts lesson markdown to HTML.
func RenderMarkdown(src string) (string, error) {
	if src == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := markdownRenderer().Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
