package api

import (
	"strings"

	"golang.org/x/net/html"
)

// sanitizeHTML reduces user-supplied rich text to its plain text.
// Markup is dropped entirely, including script and style bodies, so
// ticket content can be echoed to other users without escaping games.
func sanitizeHTML(s string) string {
	if !strings.ContainsAny(s, "<>&") {
		return s
	}

	var b strings.Builder
	skipDepth := 0
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.StartTagToken:
			name, _ := z.TagName()
			if isContentless(string(name)) {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if isContentless(string(name)) && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func isContentless(tag string) bool {
	switch tag {
	case "script", "style", "iframe", "object":
		return true
	}
	return false
}
