// ABOUTME: ask command: sends one message through the configured provider and prints the reply
// ABOUTME: Useful for checking a backend or the simulated trigger table from a shell

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/2389/portfolio-chat/internal/chat"
	"github.com/2389/portfolio-chat/internal/ident"
	"github.com/2389/portfolio-chat/internal/provider"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Send one message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.Logging, cmd.ErrOrStderr())
			p, err := provider.New(cfg.ProviderOptions(), ident.Generate(), provider.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("creating provider: %w", err)
			}
			return runAsk(cmd.Context(), p, strings.Join(args, " "), asJSON, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full reply as JSON")
	return cmd
}

func runAsk(ctx context.Context, p provider.Provider, raw string, asJSON bool, out io.Writer) error {
	text, err := chat.ValidateMessage(raw)
	if err != nil {
		return err
	}

	reply, err := p.Respond(ctx, text)
	if err != nil {
		var exhausted *provider.ExhaustedRetriesError
		if errors.As(err, &exhausted) {
			return fmt.Errorf("backend unreachable after %d attempts: %w", exhausted.Attempts, exhausted.Last)
		}
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(reply)
	}
	_, err = fmt.Fprintln(out, reply.Reply)
	return err
}
