// Command gameserver is the reference runtime process: it loads experience
// content from a content root, serves the session gateway's WebSocket and
// HTTP surfaces, and exits cleanly on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	s := settingsFromEnv()

	app, err := newApplication(s)
	if err != nil {
		os.Stderr.WriteString("gameserver: " + err.Error() + "\n")
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:    s.listenAddr,
		Handler: app.router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("gameserver listening", "addr", s.listenAddr, "content_root", s.contentRoot)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		app.logger.Info("shutting down")
	case err := <-errCh:
		app.logger.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("shutdown error", "error", err)
	}
	if err := app.caster.Close(); err != nil {
		app.logger.Error("broadcaster close error", "error", err)
	}
	if err := app.tracing.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("tracing shutdown error", "error", err)
	}
}
