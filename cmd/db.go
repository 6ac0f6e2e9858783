package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/scrimm/scrimm/pkg/storage"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect the local key-value store",
}

var dbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored keys with their size and last update",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rec, err := openRecents()
		if err != nil {
			return err
		}
		defer rec.Close()

		entries, err := rec.db.List(context.Background())
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("Store is empty.")
			return nil
		}
		printEntries(os.Stdout, entries)
		return nil
	},
}

var dbDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Remove a key from the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := openRecents()
		if err != nil {
			return err
		}
		defer rec.Close()

		if err := rec.lock.Lock(); err != nil {
			return err
		}
		defer rec.lock.Unlock()
		if err := rec.db.Delete(context.Background(), args[0]); err != nil {
			return fmt.Errorf("delete %s: %w", args[0], err)
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

func printEntries(out io.Writer, entries []storage.Entry) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "KEY\tBYTES\tUPDATED\t")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%d\t%s\t\n", e.Key, e.Size, e.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	w.Flush()
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbListCmd)
	dbCmd.AddCommand(dbDeleteCmd)
}
