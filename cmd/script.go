package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scrimm/scrimm/pkg/detect"
)

var scriptCmd = &cobra.Command{
	Use:   "script",
	Short: "Print the page detector script for embedding in a web view",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := scriptOptions()
		opts.Transport, _ = cmd.Flags().GetString("transport")
		opts.Endpoint, _ = cmd.Flags().GetString("endpoint")
		opts.BrowseURL, _ = cmd.Flags().GetString("browse-url")
		opts.CloseURL, _ = cmd.Flags().GetString("close-url")

		js, err := detect.Script(opts)
		if err != nil {
			return err
		}
		fmt.Println(js)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scriptCmd)
	scriptCmd.Flags().String("transport", detect.TransportWebKit, "Message transport: webkit or bridge")
	scriptCmd.Flags().String("endpoint", "", "Channel URL (bridge transport)")
	scriptCmd.Flags().String("browse-url", "", "Navigation prefix (bridge transport)")
	scriptCmd.Flags().String("close-url", "", "URL beaconed when the page goes away (bridge transport)")
}
