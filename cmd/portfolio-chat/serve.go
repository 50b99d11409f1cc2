// ABOUTME: serve command: hosts the web widget over HTTP until interrupted
// ABOUTME: Shuts down gracefully, letting pending replies settle before exit

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/2389/portfolio-chat/internal/chat"
	"github.com/2389/portfolio-chat/internal/config"
	"github.com/2389/portfolio-chat/internal/ident"
	"github.com/2389/portfolio-chat/internal/provider"
	"github.com/2389/portfolio-chat/internal/state"
	"github.com/2389/portfolio-chat/internal/webchat"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host the web widget",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.HTTPAddr = addr
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.http_addr)")
	return cmd
}

// newWidget builds one widget instance rendering to r. Extra options are
// applied after the configured ones.
func newWidget(cfg *config.Config, r chat.Renderer, logger *slog.Logger, extra ...chat.Option) (*chat.Controller, error) {
	st := state.New(ident.Generate(), r)

	responder, err := provider.New(cfg.ProviderOptions(), st.ConversationID(), provider.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("creating provider: %w", err)
	}

	opts := append(cfg.ChatOptions(), chat.WithLogger(logger))
	opts = append(opts, extra...)
	return chat.NewController(st, responder, r, opts...), nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	printBanner()

	logger := setupLogger(cfg.Logging, os.Stdout)

	stream := webchat.NewStream(logger)
	ctrl, err := newWidget(cfg, stream, logger)
	if err != nil {
		return err
	}
	widget := webchat.New(ctrl, stream, logger)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("HTTP:      http://%s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	if cfg.Provider.UseMock {
		fmt.Print("Provider:  ")
		yellow.Println("simulated")
	} else {
		fmt.Printf("Provider:  %s\n", cfg.ProviderOptions().URL())
	}
	fmt.Println()

	logger.Info("starting portfolio-chat",
		"http_addr", cfg.Server.HTTPAddr,
		"conversation_id", ctrl.State().ConversationID(),
		"mock", cfg.Provider.UseMock)

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           widget,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		// Event streams only end when their subscribers are closed, so
		// the widget goes first.
		widget.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		return nil
	})

	return g.Wait()
}
