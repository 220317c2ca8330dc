// Package views turns rows into the view models the page templates render.
// Nothing here touches the database or the request.
package views

import (
	"html/template"
	"strings"

	"github.com/russross/blackfriday/v2"
)

const markdownExtensions = blackfriday.CommonExtensions | blackfriday.AutoHeadingIDs

// fenceSeparator ends an open list before a top-level code fence; blackfriday
// otherwise folds the fence into the last list item as inline code.
const fenceSeparator = "<!-- -->"

// RenderMarkdown converts issue bodies to HTML. Issue bodies are authored
// content, so raw HTML in them is passed through.
func RenderMarkdown(md string) template.HTML {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	md = separateFences(strings.ReplaceAll(md, "\r\n", "\n"))
	return template.HTML(blackfriday.Run([]byte(md), blackfriday.WithExtensions(markdownExtensions)))
}

func separateFences(md string) string {
	lines := strings.Split(md, "\n")
	out := make([]string, 0, len(lines))
	open := ""
	for _, line := range lines {
		marker := fenceMarker(line)
		switch {
		case open == "" && marker != "":
			out = append(out, "", fenceSeparator, "")
			open = marker
		case open != "" && marker == open:
			open = ""
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// fenceMarker reports the fence an unindented line opens or closes.
func fenceMarker(line string) string {
	for _, m := range []string{"```", "~~~"} {
		if strings.HasPrefix(line, m) {
			return m
		}
	}
	return ""
}
