// Package cli provides the command-line interface for shiksha.
package cli

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/virtual-shiksha/shiksha/internal/cache"
	"github.com/virtual-shiksha/shiksha/internal/db"
	"github.com/virtual-shiksha/shiksha/internal/log"
	"github.com/virtual-shiksha/shiksha/internal/syncq"
	"github.com/virtual-shiksha/shiksha/internal/telemetry"
	"github.com/virtual-shiksha/shiksha/pkg/version"
)

var telemetryClient telemetry.Client = telemetry.Noop()

var commandStartTime time.Time

var rootCmd = &cobra.Command{
	Use:   "shiksha",
	Short: "Offline data and caching layer for the Virtual Shiksha portal",
	Long: `Offline data and caching layer for the Virtual Shiksha portal

Keeps portal data in a local store, queues quiz answers, assignments and
forum posts while offline and delivers them when the portal is reachable,
and serves the portal through a caching proxy that keeps working offline.

Run 'shiksha serve' to start the proxy and the background sync.

Telemetry:
  Telemetry is enabled by default, always anonymous, and will never track
  personal information, stored records or IP addresses.

  Opt-out with:
  	SHIKSHA_TELEMETRY_TRACKING_ENABLED=false`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		commandStartTime = time.Now()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		durationMs := time.Since(commandStartTime).Milliseconds()
		hasFlags := cmd.Flags().NFlag() > 0
		telemetryClient.TrackCLICommandExecuted(cmd.CommandPath(), hasFlags, durationMs)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(drainCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(storeCmd)
}

// Execute runs the CLI with fang enhancements.
func Execute(ctx context.Context, tc telemetry.Client) error {
	if tc == nil {
		tc = telemetry.New(nil)
	}
	telemetryClient = tc

	start := time.Now()
	tc.TrackAppStarted("cli")
	defer func() {
		tc.TrackAppExited("cli", time.Since(start).Milliseconds())
	}()

	return fang.Execute(
		ctx,
		rootCmd,
		fang.WithVersion(version.Short()),
		fang.WithCommit(version.Commit),
	)
}

// trackCLIError records the error category and returns an error fit to show
// the user. The raw error goes to the log.
func trackCLIError(cmdName string, err error) error {
	if err == nil {
		return nil
	}
	errorType := classifyError(err)
	telemetryClient.TrackCLIError(cmdName, errorType)
	log.Debugf("%s: %v", cmdName, err)
	return userFacing(errorType, err)
}

// classifyError determines the error type for telemetry.
func classifyError(err error) string {
	switch {
	case errors.Is(err, cache.ErrNetworkFailure), errors.Is(err, syncq.ErrDeliveryFailure):
		return "network_error"
	case errors.Is(err, db.ErrStorageUnavailable):
		return "storage_unavailable"
	case errors.Is(err, db.ErrWrite), errors.Is(err, db.ErrRead):
		return "database_error"
	case errors.Is(err, db.ErrUnknownPartition), errors.Is(err, db.ErrReservedPartition), errors.Is(err, db.ErrUnknownIndex):
		return "validation_error"
	case errors.Is(err, db.ErrNotFound), errors.Is(err, cache.ErrNotCached):
		return "not_found_error"
	}

	errStr := err.Error()
	switch {
	case containsAny(errStr, "config", "configuration"):
		return "config_error"
	case containsAny(errStr, "database", "db"):
		return "database_error"
	case containsAny(errStr, "network", "timeout", "connection"):
		return "network_error"
	case containsAny(errStr, "permission", "access denied"):
		return "permission_error"
	case containsAny(errStr, "not found", "does not exist"):
		return "not_found_error"
	case containsAny(errStr, "invalid", "parse", "format"):
		return "validation_error"
	default:
		return "unknown_error"
	}
}

// userError carries a message phrased for the user while keeping the
// underlying error reachable through errors.Is.
type userError struct {
	msg string
	err error
}

func (e *userError) Error() string { return e.msg }
func (e *userError) Unwrap() error { return e.err }

// userFacing rewrites connectivity and storage failures as availability
// problems. Other errors are already user input problems and pass through.
func userFacing(errorType string, err error) error {
	switch errorType {
	case "network_error":
		return &userError{
			msg: "the portal is not reachable right now; anything you saved is kept on this device and will be sent when you are back online",
			err: err,
		}
	case "storage_unavailable":
		return &userError{
			msg: "offline storage is not available on this device (see " + logHint() + ")",
			err: err,
		}
	case "database_error":
		return &userError{
			msg: "offline storage could not complete the operation; please try again (see " + logHint() + ")",
			err: err,
		}
	}
	return err
}

func logHint() string {
	if home := os.Getenv("SHIKSHA_HOME"); home != "" {
		return home + "/logs/shiksha.log"
	}
	return "the shiksha log"
}

// containsAny checks if s contains any of the substrings (case-insensitive).
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}
