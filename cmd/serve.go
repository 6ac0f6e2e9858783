package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/scrimm/scrimm/internal/bridge"
	"github.com/scrimm/scrimm/internal/handoff"
	"github.com/scrimm/scrimm/internal/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local bridge and browse through your own web browser",
	RunE: func(cmd *cobra.Command, args []string) error {
		listen, _ := cmd.Flags().GetString("listen")
		if listen == "" {
			listen = viper.GetString("bridge.listen")
		}

		client, err := newHTTPClient()
		if err != nil {
			return err
		}
		rec, err := openRecents()
		if err != nil {
			return err
		}
		defer rec.Close()

		h := newPlayer()
		defer h.Close()

		srv := bridge.New(client, handoff.New(rec, h), rec, loadProviders())
		srv.Script = scriptOptions()
		srv.Username = viper.GetString("bridge.username")
		srv.Password = viper.GetString("bridge.password")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		utils.Log.Infof("Open http://%s/ in your browser", listen)
		return srv.Start(ctx, listen)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "HTTP listen address (default: bridge.listen from config)")
}
