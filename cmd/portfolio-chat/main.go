// ABOUTME: Entry point for portfolio-chat, the embeddable portfolio chat widget
// ABOUTME: Wires config, logging, and the serve, repl, and ask commands

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/portfolio-chat/internal/config"
)

// Version is set at build time.
var version = "dev"

const banner = `
   ___         _    __     _ _          _         _
  | _ \___ _ _| |_ / _|___| (_)___   __| |_  __ _| |_
  |  _/ _ \ '_|  _|  _/ _ \ | / _ \ / _| ' \/ _' |  _|
  |_| \___/_|  \__|_| \___/_|_\___/ \__|_||_\__,_|\__|
`

// rootOptions holds flags shared by every command.
type rootOptions struct {
	configPath string
}

// loadConfig reads the config file (if any) and applies environment overrides.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	path := o.configPath
	if path == "" {
		path = os.Getenv("PORTFOLIO_CHAT_CONFIG")
	}
	cfg, err := config.Load(path, os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "portfolio-chat",
		Short: "Chat widget for a personal portfolio site",
		Long: `portfolio-chat answers recruiters' questions about a portfolio.

Replies come from a live inference backend (with timeout and retry) or,
with USE_MOCK=true, from a built-in simulated responder.

Commands:
  serve - Host the web widget
  repl  - Chat in the terminal
  ask   - Send one message and print the reply`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"config file (.yaml or .toml; default $PORTFOLIO_CHAT_CONFIG)")

	root.AddCommand(
		newServeCmd(opts),
		newREPLCmd(opts),
		newAskCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func printBanner() {
	color.New(color.FgCyan).Print(banner)
	color.New(color.FgHiBlack).Printf("    version: %s\n\n", version)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
