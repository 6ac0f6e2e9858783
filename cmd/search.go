package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/scrimm/scrimm/pkg/providers"
	"github.com/scrimm/scrimm/pkg/video"
)

var searchCmd = &cobra.Command{
	Use:   "search <provider> <query...>",
	Short: "Build a provider search URL, optionally looking for a video on it",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		browse, _ := cmd.Flags().GetBool("browse")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		list := loadProviders()
		p, ok := providers.Find(list, args[0])
		if !ok {
			return fmt.Errorf("unknown provider %q, see scrimm providers", args[0])
		}
		searchURL := p.QueryURL(strings.Join(args[1:], " "))
		fmt.Println(searchURL)
		if !browse {
			return nil
		}

		target, ok := video.NormalizeInput(searchURL)
		if !ok {
			return fmt.Errorf("provider %s built an invalid URL: %s", p.Name, searchURL)
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		v, err := detectVideo(ctx, target)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n%s\n", v.PageTitle, v.URLString())
		return nil
	},
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List the configured search providers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		list := loadProviders()
		if len(list) == 0 {
			fmt.Println("No search providers configured.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "NAME\tSEARCH URL\t")
		for _, p := range list {
			fmt.Fprintf(w, "%s\t%s\t\n", p.Name, p.SearchURL)
		}
		w.Flush()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(providersCmd)
	searchCmd.Flags().Bool("browse", false, "Load the result page and look for a video")
	searchCmd.Flags().Duration("timeout", 30*time.Second, "Give up on the page after this long")
}
