package cmds

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/clarinet/pkg/credentials"
	"github.com/go-go-golems/clarinet/pkg/flow"
	"github.com/go-go-golems/clarinet/pkg/messages"
	"github.com/go-go-golems/clarinet/pkg/searchapi"
	"github.com/go-go-golems/clarinet/pkg/ui"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	input "github.com/tcnksm/go-input"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

var (
	noteStyle    = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("246"))
	loadingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

type askSettings struct {
	skipAll bool
	copy    bool
	raw     bool
}

func newAskCommand(rs *rootSettings) *cobra.Command {
	s := &askSettings{}
	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Run a single search from the command line",
		Long: "Start a search, answer the clarification questions in the terminal and print the report.\n" +
			"Without a terminal every question is skipped.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), rs, s, strings.Join(args, " "), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVarP(&s.skipAll, "skip-all", "y", false, "Skip every clarification question")
	cmd.Flags().BoolVarP(&s.copy, "copy", "c", false, "Copy the report markdown to the clipboard")
	cmd.Flags().BoolVar(&s.raw, "raw", false, "Print markdown without terminal styling")
	return cmd
}

func runAsk(ctx context.Context, rs *rootSettings, s *askSettings, query string, out io.Writer) error {
	provider, err := rs.currentProvider()
	if err != nil {
		return err
	}
	if err := rs.logToFile(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	a, err := newApp(ctx, rs.cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	interactive := isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stderr.Fd())
	pr := newNotePrinter(os.Stderr)

	if err := startSearch(ctx, a, query, provider, interactive); err != nil {
		return err
	}
	st := a.flow.Snapshot()
	pr.print(st.Messages)

	for _, m := range st.Messages {
		if m.Type != messages.TypeQuestion {
			continue
		}
		choice := searchapi.SkipChoice
		if interactive && !s.skipAll {
			choice, err = askQuestion(ctx, m)
			if err != nil {
				return err
			}
		}
		if err := a.flow.HandleChoiceSelect(m.ID, choice); err != nil {
			return err
		}
	}

	if st = a.flow.Snapshot(); !st.SubmitAvailable {
		return lastNoteError(st.Messages, "search could not be started")
	}
	if err := a.flow.SubmitAnswers(ctx); err != nil {
		return err
	}
	pr.print(a.flow.Snapshot().Messages)

	if err := waitWithProgress(ctx, a.flow, os.Stderr, rs.cfg.API.PollInterval); err != nil {
		return err
	}
	st = a.flow.Snapshot()
	pr.print(st.Messages)

	md, ok := resultMarkdown(st.Messages)
	if !ok {
		return lastNoteError(st.Messages, "search returned no results")
	}
	return writeResult(out, md, s.raw, s.copy)
}

// writeResult prints md, styled when stdout is a terminal, and optionally copies it.
func writeResult(out io.Writer, md string, raw bool, copyToClipboard bool) error {
	var err error
	if raw || !isatty.IsTerminal(os.Stdout.Fd()) {
		_, err = fmt.Fprint(out, md)
	} else {
		_, err = fmt.Fprint(out, ui.RenderMarkdown(md, terminalWidth()))
	}
	if err != nil {
		return err
	}
	if copyToClipboard {
		if err := clipboard.WriteAll(md); err != nil {
			return errors.Wrap(err, "copy report to clipboard")
		}
		_, _ = fmt.Fprintln(os.Stderr, noteStyle.Render("Report copied to clipboard."))
	}
	return nil
}

// startSearch starts the flow and, on a terminal, asks for a missing api key once.
func startSearch(ctx context.Context, a *app, query string, p credentials.Provider, interactive bool) error {
	err := a.flow.StartSearchFlow(ctx, query, p)
	if !errors.Is(err, flow.ErrAPIKeyMissing) {
		return err
	}
	if !interactive {
		return errors.Wrapf(err, "no api key for %s, run `clarinet credentials set %s`", p.Label(), p)
	}
	key, err := promptAPIKey(p)
	if err != nil {
		return err
	}
	if err := a.credentials.SetAPIKey(ctx, p, key); err != nil {
		return err
	}
	log.Info().Str("provider", string(p)).Msg("api key saved")
	return a.flow.StartSearchFlow(ctx, query, p)
}

func promptAPIKey(p credentials.Provider) (string, error) {
	prompt := &input.UI{
		Writer: os.Stderr,
		Reader: os.Stdin,
	}
	key, err := prompt.Ask(fmt.Sprintf("No API key stored for %s. Enter one", p.Label()), &input.Options{
		Required:  true,
		Loop:      true,
		Mask:      true,
		HideOrder: true,
		ValidateFunc: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("the api key must not be empty")
			}
			return nil
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "read api key")
	}
	return strings.TrimSpace(key), nil
}

func askQuestion(ctx context.Context, m messages.Message) (string, error) {
	var choice string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(m.Content).
				Options(huh.NewOptions(m.Options()...)...).
				Value(&choice),
		),
	).WithTheme(huh.ThemeCharm())
	if err := form.RunWithContext(ctx); err != nil {
		return "", errors.Wrapf(err, "answer %q", m.Content)
	}
	return choice, nil
}

// waitWithProgress waits for polling to settle, printing a dot per interval.
func waitWithProgress(ctx context.Context, f *flow.Orchestrator, w io.Writer, interval time.Duration) error {
	if !f.Snapshot().Polling {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	done := make(chan struct{})
	g.Go(func() error {
		defer close(done)
		return f.WaitForResults(gctx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				_, _ = fmt.Fprintln(w)
				return nil
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				_, _ = fmt.Fprint(w, loadingStyle.Render("."))
			}
		}
	})
	return g.Wait()
}

// resultMarkdown returns the report, or the source list when the backend sent
// resources without a report.
func resultMarkdown(ms []messages.Message) (string, bool) {
	if p, ok := ui.LastReport(ms); ok {
		return ui.ReportMarkdown(p), true
	}
	var resources []searchapi.Resource
	for _, m := range ms {
		if r, ok := m.Payload.(messages.ResourcePayload); ok {
			resources = append(resources, searchapi.Resource{Title: r.Title, URL: r.URL, Content: r.Content})
		}
	}
	if len(resources) == 0 {
		return "", false
	}
	return ui.ReportMarkdown(messages.ReportPayload{Resources: resources}), true
}

func lastNoteError(ms []messages.Message, fallback string) error {
	for i := len(ms) - 1; i >= 0; i-- {
		if ms[i].Type == messages.TypeSystem {
			return errors.New(ms[i].Content)
		}
	}
	return errors.New(fallback)
}

func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 100
	}
	return w
}

// notePrinter writes system and loading messages it has not printed yet.
type notePrinter struct {
	w    io.Writer
	seen map[string]bool
}

func newNotePrinter(w io.Writer) *notePrinter {
	return &notePrinter{w: w, seen: map[string]bool{}}
}

func (p *notePrinter) print(ms []messages.Message) {
	for _, m := range ms {
		if p.seen[m.ID] {
			continue
		}
		p.seen[m.ID] = true
		switch m.Type {
		case messages.TypeSystem:
			_, _ = fmt.Fprintln(p.w, noteStyle.Render(m.Content))
		case messages.TypeLoading:
			_, _ = fmt.Fprintln(p.w, loadingStyle.Render(m.Content))
		default:
		}
	}
}
