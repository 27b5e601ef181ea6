package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/go-go-golems/clarinet/pkg/credentials"
	"github.com/go-go-golems/clarinet/pkg/flow"
	"github.com/go-go-golems/clarinet/pkg/messages"
	"github.com/rs/zerolog/log"
)

// ReportMarkdown renders a report payload as markdown: title, answer, sources.
func ReportMarkdown(p messages.ReportPayload) string {
	var sb strings.Builder
	if p.Report.Title != "" {
		fmt.Fprintf(&sb, "# %s\n\n", p.Report.Title)
	}
	if a := strings.TrimSpace(p.Report.Answer); a != "" {
		sb.WriteString(a)
		sb.WriteString("\n\n")
	}
	if len(p.Resources) > 0 {
		sb.WriteString("## Sources\n\n")
		for i, r := range p.Resources {
			title := r.Title
			if title == "" {
				title = r.URL
			}
			fmt.Fprintf(&sb, "%d. [%s](%s)\n", i+1, title, r.URL)
		}
		sb.WriteString("\n")
	}
	if len(p.Images) > 0 {
		sb.WriteString("## Images\n\n")
		for _, img := range p.Images {
			fmt.Fprintf(&sb, "- %s\n", img)
		}
	}
	return strings.TrimSpace(sb.String()) + "\n"
}

// LastReport returns the newest report payload in ms.
func LastReport(ms []messages.Message) (messages.ReportPayload, bool) {
	for i := len(ms) - 1; i >= 0; i-- {
		if p, ok := ms[i].Payload.(messages.ReportPayload); ok {
			return p, true
		}
	}
	return messages.ReportPayload{}, false
}

// RenderMarkdown styles md for the terminal, falling back to the raw text.
func RenderMarkdown(md string, width int) string {
	opts := []glamour.TermRendererOption{glamour.WithStandardStyle("dark")}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		log.Warn().Err(err).Msg("could not create markdown renderer")
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		log.Warn().Err(err).Msg("could not render markdown")
		return md
	}
	return out
}

func renderSteps(current flow.Step) string {
	parts := make([]string, 0, len(flow.Steps()))
	for _, s := range flow.Steps() {
		label := fmt.Sprintf("%d %s", s.Index(), s.Label())
		switch {
		case s == current:
			parts = append(parts, stepActiveStyle.Render(label))
		case s.Done(current):
			parts = append(parts, stepDoneStyle.Render("✓ "+s.Label()))
		default:
			parts = append(parts, stepStyle.Render(label))
		}
	}
	return strings.Join(parts, stepStyle.Render(" › "))
}

func renderHeader(st flow.State, p credentials.Provider) string {
	return titleStyle.Render("clarinet") + " " + providerStyle.Render(p.Label()) + "\n" + renderSteps(st.Step)
}

type renderer struct {
	width   int
	spinner string
	cursor  option
	focused bool
	reports map[string]string
}

func (r *renderer) messages(ms []messages.Message) string {
	blocks := make([]string, 0, len(ms))
	for _, m := range ms {
		blocks = append(blocks, r.message(m))
	}
	return strings.Join(blocks, "\n\n")
}

func (r *renderer) message(m messages.Message) string {
	switch m.Type {
	case messages.TypeUser:
		return userStyle.Render("You: ") + m.Content
	case messages.TypeSystem:
		return systemStyle.Render(m.Content)
	case messages.TypeLoading:
		return r.spinner + " " + statusStyle.Render(m.Content)
	case messages.TypeQuestion:
		return r.question(m)
	case messages.TypeAnswer:
		return m.Content
	case messages.TypeResult:
		switch p := m.Payload.(type) {
		case messages.ReportPayload:
			return r.report(m.ID, p)
		case messages.ResourcePayload:
			return resource(p)
		}
		return m.Content
	}
	return m.Content
}

func (r *renderer) question(m messages.Message) string {
	lines := []string{questionStyle.Render(m.Content)}
	for _, o := range m.Options() {
		switch {
		case m.HasSelection() && o == m.SelectedChoice:
			lines = append(lines, selectedStyle.Render("✓ "+o))
		case m.HasSelection():
			continue
		case r.focused && r.cursor.messageID == m.ID && r.cursor.choice == o:
			lines = append(lines, cursorStyle.Render("› "+o))
		default:
			lines = append(lines, choiceStyle.Render("  "+o))
		}
	}
	return strings.Join(lines, "\n")
}

func (r *renderer) report(id string, p messages.ReportPayload) string {
	if out, ok := r.reports[id]; ok {
		return out
	}
	out := strings.TrimRight(RenderMarkdown(ReportMarkdown(p), r.width), "\n")
	if strings.TrimSpace(p.UserDetails) != "" {
		out += "\n" + systemStyle.Render(p.UserDetails)
	}
	r.reports[id] = out
	return out
}

func resource(p messages.ResourcePayload) string {
	title := p.Title
	if title == "" {
		title = p.URL
	}
	lines := []string{questionStyle.Render(title)}
	if p.Source != "" {
		src := p.Source
		if p.Score != nil {
			src = fmt.Sprintf("%s · score %.2f", src, *p.Score)
		}
		lines = append(lines, sourceStyle.Render(src))
	}
	if p.URL != "" {
		lines = append(lines, urlStyle.Render(p.URL))
	}
	if c := strings.TrimSpace(p.Content); c != "" {
		lines = append(lines, c)
	}
	return strings.Join(lines, "\n")
}
