// ABOUTME: Minimal fake inference backend for local development and E2E runs of the widget.
// ABOUTME: Usage: fake-backend [-addr localhost:8000] [-fail-first 2] [-delay 3s] [-rps 5]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2389/portfolio-chat/internal/backend"
)

func main() {
	addr := flag.String("addr", "localhost:8000", "HTTP listen address")
	endpoint := flag.String("endpoint", "/chat", "Chat endpoint path")
	failFirst := flag.Int("fail-first", 0, "Fail the first N requests of each conversation with 500")
	delay := flag.Duration("delay", 0, "Delay every reply by this long")
	rps := flag.Float64("rps", 0, "Requests per second before answering 503 (0 = unlimited)")
	burst := flag.Int("burst", 1, "Burst size for -rps")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	srv := backend.New(backend.Options{
		ChatEndpoint: *endpoint,
		FailFirst:    *failFirst,
		Delay:        *delay,
		RPS:          *rps,
		Burst:        *burst,
		Logger:       logger,
	})

	if err := run(*addr, srv, logger); err != nil {
		log.Fatal(err)
	}
}

func run(addr string, handler http.Handler, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("fake backend listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
