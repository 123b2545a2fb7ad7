package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var drainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Deliver queued writes now",
	Long: `Deliver every queued write once, in the order it was saved.

Nothing happens when the portal is unreachable. Writes that fail stay queued
and are retried on the next drain; a write that has failed 5 times is dropped
and logged.`,
	Args: cobra.NoArgs,
	RunE: runDrain,
}

func runDrain(cmd *cobra.Command, args []string) error {
	a, err := openApp("drain")
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	a.probe.Check(ctx)
	res, err := a.queue.Drain(ctx)
	if err != nil {
		return trackCLIError("drain", err)
	}
	a.recordDrain(ctx, res)

	if res.Skipped {
		_, _ = fmt.Fprintf(out, "%s nothing sent (%s)\n", warnStyle.Render("!"), res.SkipReason)
		return nil
	}

	printHeader(out, "Sync queue drained")
	_, _ = fmt.Fprintf(out, "  Delivered  %d\n", res.Delivered)
	_, _ = fmt.Fprintf(out, "  Failed     %d\n", res.Failed)
	_, _ = fmt.Fprintf(out, "  Dropped    %d\n", res.Abandoned)
	_, _ = fmt.Fprintf(out, "  Remaining  %d\n", res.Remaining)
	_, _ = fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("  took %s", res.Duration.Round(time.Millisecond))))
	return nil
}
