package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/virtual-shiksha/shiksha/internal/db"
	"github.com/virtual-shiksha/shiksha/internal/models"
)

var storeIndex string

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Read and write records in the offline store",
	Long: `Read and write records in the offline store.

Records live in partitions (studentData, teacherData, classes, assignments,
quizzes, downloads). Writing a record with an existing id replaces it.`,
}

var storePartitionsCmd = &cobra.Command{
	Use:   "partitions",
	Short: "List partitions",
	Args:  cobra.NoArgs,
	RunE:  runStorePartitions,
}

var storeGetCmd = &cobra.Command{
	Use:   "get <partition> <id>",
	Short: "Print one record",
	Long: `Print one record. An integer id such as 7 names an integer key; quote it
('"7"') to name the string key "7".`,
	Args: cobra.ExactArgs(2),
	RunE: runStoreGet,
}

var storePutCmd = &cobra.Command{
	Use:   "put <partition> [json]",
	Short: "Insert or replace a record",
	Long: `Insert or replace a record. The id is taken from the record's "id" field.
The record is read from the argument or, when omitted or "-", from standard
input.

Examples:
  shiksha store put classes '{"id":"math-7","title":"Algebra"}'`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runStorePut,
}

var storeListCmd = &cobra.Command{
	Use:   "list <partition> [value]",
	Short: "Print every record in a partition",
	Long: `Print every record in a partition, one per line. With --index the
records whose indexed field equals value are printed instead.

Examples:
  shiksha store list quizzes
  shiksha store list downloads --index filename week1.mp4`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runStoreList,
}

var storeDeleteCmd = &cobra.Command{
	Use:   "delete <partition> <id>",
	Short: "Delete a record",
	Args:  cobra.ExactArgs(2),
	RunE:  runStoreDelete,
}

var storeClearCmd = &cobra.Command{
	Use:   "clear <partition>",
	Short: "Delete every record in a partition",
	Args:  cobra.ExactArgs(1),
	RunE:  runStoreClear,
}

func init() {
	storeListCmd.Flags().StringVar(&storeIndex, "index", "", "Match records on this indexed field")

	storeCmd.AddCommand(storePartitionsCmd)
	storeCmd.AddCommand(storeGetCmd)
	storeCmd.AddCommand(storePutCmd)
	storeCmd.AddCommand(storeListCmd)
	storeCmd.AddCommand(storeDeleteCmd)
	storeCmd.AddCommand(storeClearCmd)
}

func runStorePartitions(cmd *cobra.Command, args []string) error {
	a, err := openApp("store partitions")
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	printHeader(out, "Partitions")
	for _, p := range a.db.Partitions() {
		var notes []string
		if p.AutoIncrement {
			notes = append(notes, "auto-increment")
		}
		if p.Indexes != "" {
			notes = append(notes, "indexes: "+p.Indexes)
		}
		_, _ = fmt.Fprintf(out, "  %-14s %s\n", p.Name, mutedStyle.Render(strings.Join(notes, ", ")))
	}
	return nil
}

func runStoreGet(cmd *cobra.Command, args []string) error {
	a, err := openApp("store get")
	if err != nil {
		return err
	}
	defer a.Close()

	rec, found, err := a.db.GetRecord(cmd.Context(), args[0], db.ParseRecordID(args[1]))
	if err != nil {
		return trackCLIError("store get", err)
	}
	if !found {
		return trackCLIError("store get", fmt.Errorf("%s/%s: %w", args[0], args[1], db.ErrNotFound))
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(rec.Data))
	return nil
}

func runStorePut(cmd *cobra.Command, args []string) error {
	data, err := readPayload(cmd.InOrStdin(), args[1:])
	if err != nil {
		return trackCLIError("store put", err)
	}

	a, err := openApp("store put")
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := a.db.PutJSON(cmd.Context(), args[0], data)
	if err != nil {
		return trackCLIError("store put", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stored %s/%s\n", args[0], id)
	return nil
}

func runStoreList(cmd *cobra.Command, args []string) error {
	a, err := openApp("store list")
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	partition := args[0]

	var recs []models.Record
	if storeIndex != "" {
		if len(args) < 2 {
			return trackCLIError("store list", fmt.Errorf("invalid arguments: --index needs a value"))
		}
		recs, err = a.db.GetAllByIndex(ctx, partition, storeIndex, args[1])
	} else {
		recs, err = a.db.GetAllRecords(ctx, partition)
	}
	if err != nil {
		return trackCLIError("store list", err)
	}

	out := cmd.OutOrStdout()
	for _, r := range recs {
		_, _ = fmt.Fprintln(out, string(r.Data))
	}
	return nil
}

func runStoreDelete(cmd *cobra.Command, args []string) error {
	a, err := openApp("store delete")
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.db.DeleteRecord(cmd.Context(), args[0], db.ParseRecordID(args[1])); err != nil {
		return trackCLIError("store delete", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s/%s\n", args[0], args[1])
	return nil
}

func runStoreClear(cmd *cobra.Command, args []string) error {
	a, err := openApp("store clear")
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.db.ClearPartition(cmd.Context(), args[0]); err != nil {
		return trackCLIError("store clear", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", args[0])
	return nil
}
