// Package export renders a chat session as Markdown or HTML.
package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/lk2023060901/parallax-connect/internal/chat/types"
	"github.com/lk2023060901/parallax-connect/internal/pkg/validator"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const timeLayout = "2006-01-02 15:04:05 MST"

// Markdown renders the session: a title heading, then one section per
// turn with the reasoning trace as a blockquote and search sources as a
// link list.
func Markdown(s types.ChatSession) string {
	var b strings.Builder

	title := s.Title
	if title == "" {
		title = "Untitled chat"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "_Saved %s_", s.Timestamp.UTC().Format(timeLayout))
	if s.IsImportant {
		b.WriteString(" · important")
	}
	b.WriteString("\n")

	for _, m := range s.Messages {
		speaker := "Assistant"
		if m.IsUser {
			speaker = "You"
		}
		fmt.Fprintf(&b, "\n## %s · %s\n\n", speaker, m.Timestamp.UTC().Format(timeLayout))

		if thinking := m.Thinking(); thinking != "" {
			for _, line := range strings.Split(thinking, "\n") {
				b.WriteString(strings.TrimRight("> "+line, " "))
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}

		b.WriteString(strings.TrimRight(m.Text, "\n"))
		b.WriteString("\n")

		if len(m.AttachmentPaths) > 0 {
			b.WriteString("\nAttachments:\n\n")
			for _, p := range m.AttachmentPaths {
				fmt.Fprintf(&b, "- `%s`\n", p)
			}
		}

		if sources := searchSources(m.SearchMetadata); len(sources) > 0 {
			b.WriteString("\nSources:\n\n")
			for _, src := range sources {
				fmt.Fprintf(&b, "- [%s](%s)\n", src.title, src.url)
			}
		}
	}
	return b.String()
}

type source struct {
	title string
	url   string
}

// searchSources reads {"results": [{"title", "url"}]} search metadata
func searchSources(md map[string]any) []source {
	results, _ := md["results"].([]any)
	out := make([]source, 0, len(results))
	for _, r := range results {
		rec, ok := r.(map[string]any)
		if !ok {
			continue
		}
		url, _ := rec["url"].(string)
		if url == "" {
			continue
		}
		title, _ := rec["title"].(string)
		if title == "" {
			title = url
		}
		out = append(out, source{title: escapeLinkText(title), url: url})
	}
	return out
}

func escapeLinkText(s string) string {
	return strings.NewReplacer("[", `\[`, "]", `\]`).Replace(s)
}

var renderer = goldmark.New(goldmark.WithExtensions(extension.GFM))

// HTML renders the Markdown export as a standalone HTML document. Raw
// HTML in message text is not passed through.
func HTML(s types.ChatSession) (string, error) {
	var body bytes.Buffer
	if err := renderer.Convert([]byte(Markdown(s)), &body); err != nil {
		return "", fmt.Errorf("export: render html: %w", err)
	}

	var doc strings.Builder
	doc.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&doc, "<title>%s</title>\n", html.EscapeString(s.Title))
	doc.WriteString("</head>\n<body>\n")
	doc.Write(body.Bytes())
	doc.WriteString("</body>\n</html>\n")
	return doc.String(), nil
}

// Filename suggests a file name for the export of s with extension ext
func Filename(s types.ChatSession, ext string) string {
	return fmt.Sprintf("chat_%s_%s.%s", validator.SafeFileComponent(s.ID), s.Timestamp.UTC().Format("20060102_150405"), strings.TrimPrefix(ext, "."))
}

// Time formats t the way exports do
func Time(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
