package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/virtual-shiksha/shiksha/internal/cache"
	"github.com/virtual-shiksha/shiksha/internal/log"
	"github.com/virtual-shiksha/shiksha/internal/syncq"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the caching proxy and background sync",
	Long: `Run the caching proxy in front of the portal and drain the sync queue
whenever the portal is reachable.

Browsers and apps point at the listen address instead of the portal. Pages
and assets come from the offline cache when the portal is down, API calls
fall back to recent cached responses, and queued writes are delivered as
soon as connectivity returns.

Examples:
  shiksha serve
  shiksha serve --listen 0.0.0.0:8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (default from SHIKSHA_LISTEN)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp("serve")
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	listen := a.cfg.Origin.Listen
	if serveListen != "" {
		listen = serveListen
	}

	// The app shell can only be fetched while online; serving continues
	// either way and installation is retried on the next start.
	a.probe.Check(ctx)
	if installed, err := a.router.EnsureInstalled(ctx); err != nil {
		log.Warnf("offline cache not installed: %v", err)
	} else if installed {
		log.Infof("offline cache %s installed", a.cfg.Cache.Version)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.probe.Run(runCtx)

	runner := syncq.NewRunner(a.queue, a.probe, syncq.NewTicker(a.cfg.Sync.Interval), a.cfg.Sync.MinDrainGap)
	runner.OnDrain = func(trigger string, res syncq.Result, err error) {
		if err == nil {
			a.recordDrain(runCtx, res)
		}
	}

	srv := &http.Server{
		Addr:              listen,
		Handler:           cache.Handler(a.router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		if err := runner.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("sync runner: %w", err)
		}
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen on %s: %w", listen, err)
		}
	}()

	printHeader(out, "shiksha serving %s", a.router.Origin())
	_, _ = fmt.Fprintf(out, "  Listening on  http://%s\n", listen)
	_, _ = fmt.Fprintf(out, "  Cache         %s\n", a.cfg.Cache.Version)
	_, _ = fmt.Fprintf(out, "  Sync every    %s\n", a.cfg.Sync.Interval)
	_, _ = fmt.Fprintln(out, mutedStyle.Render("  Press Ctrl+C to stop"))

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("shutdown: %v", err)
	}

	return trackCLIError("serve", runErr)
}
