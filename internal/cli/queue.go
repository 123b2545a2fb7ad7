package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/virtual-shiksha/shiksha/internal/models"
)

var queueListType string

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and add queued writes",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List writes waiting to be delivered",
	Long: `List writes waiting to be delivered, oldest first.

Examples:
  shiksha queue list
  shiksha queue list --type quiz`,
	Args: cobra.NoArgs,
	RunE: runQueueList,
}

var queueAddCmd = &cobra.Command{
	Use:   "add <sync-type> [json]",
	Short: "Queue a write for delivery",
	Long: `Queue a write for delivery. The payload is read from the argument or,
when omitted or "-", from standard input.

Examples:
  shiksha queue add quiz '{"quizId":7,"answers":[1,3,2]}'
  cat post.json | shiksha queue add forum`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runQueueAdd,
}

func init() {
	queueListCmd.Flags().StringVar(&queueListType, "type", "", "Only list writes of this sync type (quiz, assignment, forum)")

	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueAddCmd)
}

func runQueueList(cmd *cobra.Command, args []string) error {
	a, err := openApp("queue list")
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	total, err := a.queue.Len(ctx)
	if err != nil {
		return trackCLIError("queue list", err)
	}

	var entries []models.SyncEntry
	if queueListType != "" {
		entries, err = a.queue.PendingOfType(ctx, models.SyncType(queueListType))
	} else {
		entries, err = a.queue.Pending(ctx)
	}
	if err != nil {
		return trackCLIError("queue list", err)
	}

	if len(entries) == 0 {
		if queueListType != "" && total > 0 {
			_, _ = fmt.Fprintf(out, "No queued %s writes (%d of other types).\n", queueListType, total)
			return nil
		}
		_, _ = fmt.Fprintln(out, "No queued writes.")
		_, _ = fmt.Fprintln(out, mutedStyle.Render("Last drain: "+formatTimeSince(a.lastDrain(ctx))))
		return nil
	}

	if queueListType != "" {
		printHeader(out, "Queued %s writes (%d of %d)", queueListType, len(entries), total)
	} else {
		printHeader(out, "Queued writes (%d)", total)
	}
	for _, e := range entries {
		_, _ = fmt.Fprintf(out, "  #%-5d %-12s saved %s, %d attempt(s)\n",
			e.ID, e.SyncType, formatTimeSince(e.EnqueuedAt), e.Attempts)
		if e.LastError != "" {
			_, _ = fmt.Fprintf(out, "         %s\n", mutedStyle.Render("last error: "+e.LastError))
		}
	}
	return nil
}

func runQueueAdd(cmd *cobra.Command, args []string) error {
	payload, err := readPayload(cmd.InOrStdin(), args[1:])
	if err != nil {
		return trackCLIError("queue add", err)
	}

	a, err := openApp("queue add")
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := a.queue.Enqueue(cmd.Context(), models.SyncType(args[0]), json.RawMessage(payload))
	if err != nil {
		return trackCLIError("queue add", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Queued %s write #%d\n", args[0], id)
	return nil
}

// readPayload returns the JSON argument, or stdin when it is absent or "-".
func readPayload(stdin io.Reader, args []string) ([]byte, error) {
	var data []byte
	if len(args) > 0 && args[0] != "-" {
		data = []byte(args[0])
	} else {
		if stdin == nil {
			stdin = os.Stdin
		}
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}
		data = b
	}
	data = []byte(strings.TrimSpace(string(data)))
	if !json.Valid(data) {
		return nil, fmt.Errorf("invalid payload: not valid JSON")
	}
	return data, nil
}
