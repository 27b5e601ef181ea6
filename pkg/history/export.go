package history

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/go-go-golems/clarinet/pkg/messages"
	"github.com/go-go-golems/clarinet/pkg/persistence/historystore"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Format is an export format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	}
	return "", errors.Errorf("unknown export format %q (known: markdown, html)", s)
}

// Export renders r in the given format.
func Export(r historystore.Record, f Format) (string, error) {
	switch f {
	case FormatMarkdown:
		return ToMarkdown(r), nil
	case FormatHTML:
		return ToHTML(r)
	}
	return "", errors.Errorf("unknown export format %q", f)
}

// ToMarkdown renders the report followed by its sources and images.
func ToMarkdown(r historystore.Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", r.Title())
	fmt.Fprintf(&sb, "- **Query:** %s\n", r.Query)
	if r.Provider != "" {
		fmt.Fprintf(&sb, "- **Provider:** %s\n", r.Provider)
	}
	if r.CreatedAtMs > 0 {
		fmt.Fprintf(&sb, "- **Date:** %s\n", r.CreatedAt().UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&sb, "- **Session:** `%s`\n\n", r.SessionID)

	if r.Report != nil && strings.TrimSpace(r.Report.Answer) != "" {
		sb.WriteString(strings.TrimSpace(r.Report.Answer))
		sb.WriteString("\n\n")
	}
	if strings.TrimSpace(r.UserDetails) != "" {
		sb.WriteString("## Your details\n\n")
		sb.WriteString(strings.TrimSpace(r.UserDetails))
		sb.WriteString("\n\n")
	}
	if len(r.Resources) > 0 {
		sb.WriteString("## Sources\n\n")
		for i, res := range r.Resources {
			title := res.Title
			if title == "" {
				title = res.URL
			}
			fmt.Fprintf(&sb, "%d. [%s](%s)", i+1, title, res.URL)
			if host := messages.Hostname(res.URL); host != "" {
				fmt.Fprintf(&sb, " (%s)", host)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	if len(r.Images) > 0 {
		sb.WriteString("## Images\n\n")
		for _, img := range r.Images {
			fmt.Fprintf(&sb, "- %s\n", img)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// ToHTML renders ToMarkdown as a standalone HTML document.
func ToHTML(r historystore.Record) (string, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(ToMarkdown(r)), &body); err != nil {
		return "", errors.Wrap(err, "render html")
	}
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&sb, "<title>%s</title>\n", html.EscapeString(r.Title()))
	sb.WriteString("</head>\n<body>\n")
	sb.Write(body.Bytes())
	sb.WriteString("</body>\n</html>\n")
	return sb.String(), nil
}
