package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/scrimm/scrimm/internal/utils"
	"github.com/scrimm/scrimm/pkg/recents"
	"github.com/scrimm/scrimm/pkg/video"
)

// recentsCmd represents the recents command
var recentsCmd = &cobra.Command{
	Use:   "recents",
	Short: "Show and manage recently played videos",
}

var recentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recently played videos, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		rec, err := openRecents()
		if err != nil {
			return err
		}
		defer rec.Close()
		items := rec.Items()

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(items)
		}
		if len(items) == 0 {
			fmt.Println("No recent videos.")
			return nil
		}
		printRecents(items)
		return nil
	},
}

func printRecents(items []recents.Item) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "#\tTITLE\tSITE\tPOSITION\t")
	for i, it := range items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t\n", i+1, utils.Truncate(it.Title, 50), video.Site(it.URLString), recents.FormatPosition(it.PlaybackTime))
	}
	w.Flush()
}

var recentsDeleteCmd = &cobra.Command{
	Use:   "delete <n>",
	Short: "Remove the Nth entry from recents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("not a number: %s", args[0])
		}
		rec, err := openRecents()
		if err != nil {
			return err
		}
		defer rec.Close()

		item, err := pick(rec.Items(), n)
		if err != nil {
			return err
		}
		removed, err := rec.Delete(context.Background(), item.ID)
		if err != nil {
			return err
		}
		if removed {
			fmt.Printf("Removed %q\n", item.Title)
		}
		return nil
	},
}

var recentsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget all recent videos",
	RunE: func(cmd *cobra.Command, _ []string) error {
		rec, err := openRecents()
		if err != nil {
			return err
		}
		defer rec.Close()
		if err := rec.ClearAll(context.Background()); err != nil {
			return err
		}
		fmt.Println("Recents cleared.")
		return nil
	},
}

var recentsPositionCmd = &cobra.Command{
	Use:   "position <n> <seconds>",
	Short: "Set where the Nth recent video resumes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("not a number: %s", args[0])
		}
		secs, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("not a position in seconds: %s", args[1])
		}
		rec, err := openRecents()
		if err != nil {
			return err
		}
		defer rec.Close()

		item, err := pick(rec.Items(), n)
		if err != nil {
			return err
		}
		if _, err := rec.UpdatePlaybackTime(context.Background(), item.URLString, secs); err != nil {
			return err
		}
		fmt.Printf("%q resumes at %s\n", item.Title, recents.FormatPosition(secs))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recentsCmd)
	recentsCmd.AddCommand(recentsListCmd)
	recentsCmd.AddCommand(recentsDeleteCmd)
	recentsCmd.AddCommand(recentsClearCmd)
	recentsCmd.AddCommand(recentsPositionCmd)
	recentsListCmd.Flags().Bool("json", false, "Print the stored list as JSON")
}
