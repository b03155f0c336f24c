// Package render turns chat transcripts into standalone HTML.
package render

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"project_plan_chat/plan"
	"project_plan_chat/store"
)

// Raw HTML in messages is dropped by goldmark unless WithUnsafe is set.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Markdown converts one Markdown fragment.
func Markdown(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// PlanMarkdown lays a plan out as one heading per workstream followed by
// its deliverables as a list.
func PlanMarkdown(p plan.ProjectPlan) string {
	var b strings.Builder
	for i, ws := range p.Workstreams {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "### %s\n\n", oneLine(ws.Title))
		if d := oneLine(ws.Description); d != "" {
			fmt.Fprintf(&b, "%s\n\n", d)
		}
		for _, d := range ws.Deliverables {
			fmt.Fprintf(&b, "- **%s**", oneLine(d.Title))
			if desc := oneLine(d.Description); desc != "" {
				fmt.Fprintf(&b, ": %s", desc)
			}
			var extra []string
			if d.Timeline != "" {
				extra = append(extra, "timeline: "+oneLine(d.Timeline))
			}
			if d.Dependencies != "" {
				extra = append(extra, "depends on: "+oneLine(d.Dependencies))
			}
			if len(extra) > 0 {
				fmt.Fprintf(&b, " _(%s)_", strings.Join(extra, "; "))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Message renders one message. Fenced plans become structured sections,
// everything else is Markdown.
func Message(content string) (string, error) {
	var b strings.Builder
	for _, seg := range plan.ExtractBlocks(content) {
		if seg.Kind == plan.SegmentPlan {
			body, err := Markdown(PlanMarkdown(*seg.Plan))
			if err != nil {
				return "", err
			}
			b.WriteString(`<section class="plan">` + "\n")
			b.WriteString(body)
			b.WriteString("</section>\n")
			continue
		}
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		body, err := Markdown(seg.Text)
		if err != nil {
			return "", err
		}
		b.WriteString(body)
	}
	return b.String(), nil
}

const pageStyle = `body{font-family:sans-serif;max-width:48rem;margin:2rem auto;line-height:1.5}
.message{border-bottom:1px solid #ddd;padding:1rem 0}
.role{font-size:.8rem;font-weight:700;text-transform:uppercase;color:#666}
.plan{background:#f6f8fa;border-radius:6px;padding:.5rem 1rem}`

// Chat renders a whole transcript as an HTML document.
func Chat(c *store.Chat) ([]byte, error) {
	var b bytes.Buffer
	title := html.EscapeString(c.Name)
	fmt.Fprintf(&b, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n<style>%s</style>\n</head>\n<body>\n", title, pageStyle)
	fmt.Fprintf(&b, "<h1>%s</h1>\n", title)
	if c.Model != "" {
		fmt.Fprintf(&b, "<p class=\"meta\">Model: %s</p>\n", html.EscapeString(c.Model))
	}
	for _, m := range c.Messages {
		body, err := Message(m.Content)
		if err != nil {
			return nil, fmt.Errorf("render message: %w", err)
		}
		fmt.Fprintf(&b, "<div class=\"message %s\">\n<div class=\"role\">%s</div>\n%s</div>\n",
			html.EscapeString(m.Role), html.EscapeString(m.Role), body)
	}
	b.WriteString("</body>\n</html>\n")
	return b.Bytes(), nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
