// ABOUTME: repl command: the chat widget in a terminal, rendered with fatih/color
// ABOUTME: Quick prompts are picked by number; slash commands mirror the widget controls

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/portfolio-chat/internal/chat"
	"github.com/2389/portfolio-chat/internal/config"
	"github.com/2389/portfolio-chat/internal/state"
)

func newREPLCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Chat in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return runREPL(cmd.Context(), cfg, os.Stdin, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func runREPL(ctx context.Context, cfg *config.Config, in io.Reader, out, logOut io.Writer) error {
	logger := setupLogger(cfg.Logging, logOut)

	r := newTerminalRenderer(out)
	// Terminal output needs control characters removed, not HTML escaped.
	ctrl, err := newWidget(cfg, r, logger, chat.WithSanitizer(stripControl))
	if err != nil {
		return err
	}

	return replLoop(ctx, ctrl, r, in, out)
}

// stripControl removes terminal control characters other than newlines and tabs.
func stripControl(text string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
}

// replLoop reads lines until EOF, /quit, or ctx is done. The widget is
// opened first so the greeting and quick prompts are shown.
func replLoop(ctx context.Context, ctrl *chat.Controller, r *terminalRenderer, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctrl.Toggle()

	lines := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errCh <- scanner.Err()
	}()

	for {
		fmt.Fprint(out, "> ")

		var input string
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				select {
				case err := <-errCh:
					if err != nil {
						return fmt.Errorf("reading input: %w", err)
					}
				default:
				}
				return nil
			}
			input = strings.TrimSpace(line)
		}

		switch {
		case input == "":
			continue
		case input == "/quit" || input == "/exit" || input == "/q":
			return nil
		case input == "/help":
			printREPLHelp(out)
			continue
		case input == "/state":
			snap := ctrl.State().Snapshot()
			fmt.Fprintf(out, "conversation %s: %s\n", snap.ConversationID, snap.Status)
			continue
		case strings.HasPrefix(input, "/") && isNumber(input[1:]):
			n, _ := strconv.Atoi(input[1:])
			prompt, ok := r.quickPrompt(n)
			if !ok {
				fmt.Fprintf(out, "No quick prompt %d\n", n)
				continue
			}
			ctrl.QuickPrompt(ctx, prompt)
			continue
		case strings.HasPrefix(input, "/"):
			fmt.Fprintf(out, "Unknown command %s (try /help)\n", input)
			continue
		}

		ctrl.Submit(ctx, input)
	}
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func printREPLHelp(out io.Writer) {
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  /1, /2, ...    Send a quick prompt")
	fmt.Fprintln(out, "  /state         Show the conversation state")
	fmt.Fprintln(out, "  /help          Show this help")
	fmt.Fprintln(out, "  /quit          Exit")
}

// terminalRenderer prints chat output with colors per sender.
type terminalRenderer struct {
	mu      sync.Mutex
	out     io.Writer
	prompts []string

	user   *color.Color
	bot    *color.Color
	system *color.Color
	dim    *color.Color
}

func newTerminalRenderer(out io.Writer) *terminalRenderer {
	return &terminalRenderer{
		out:    out,
		user:   color.New(color.FgGreen),
		bot:    color.New(color.FgCyan),
		system: color.New(color.FgRed, color.Bold),
		dim:    color.New(color.FgHiBlack),
	}
}

func (t *terminalRenderer) RenderMessage(text string, sender chat.Sender) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch sender {
	case chat.SenderUser:
		t.user.Fprint(t.out, "you: ")
		fmt.Fprintln(t.out, text)
	case chat.SenderBot:
		t.bot.Fprint(t.out, "le: ")
		fmt.Fprintln(t.out, stripMarkdown(text))
	default:
		t.system.Fprintln(t.out, text)
	}
}

func (t *terminalRenderer) RenderQuickPrompts(prompts []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.prompts = prompts
	for i, p := range prompts {
		t.dim.Fprintf(t.out, "  /%d ", i+1)
		fmt.Fprintln(t.out, p)
	}
}

func (t *terminalRenderer) RemoveQuickPrompts() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prompts = nil
}

func (t *terminalRenderer) UpdateUIState(snap state.Snapshot) {
	if snap.Status != state.StatusLoading {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dim.Fprintln(t.out, "  typing…")
}

func (t *terminalRenderer) quickPrompt(n int) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n < 1 || n > len(t.prompts) {
		return "", false
	}
	return t.prompts[n-1], true
}

// stripMarkdown removes common markdown formatting from text.
func stripMarkdown(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "__", "")
	s = strings.ReplaceAll(s, "`", "")
	return s
}
