package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/scrimm/scrimm/pkg/video"
)

var playCmd = &cobra.Command{
	Use:   "play [url]",
	Short: "Play a video file, the video on a page, or a recent video",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recent, _ := cmd.Flags().GetInt("recent")
		title, _ := cmd.Flags().GetString("title")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		if recent > 0 {
			rec, err := openRecents()
			if err != nil {
				return err
			}
			item, err := pick(rec.Items(), recent)
			rec.Close()
			if err != nil {
				return err
			}
			v, err := item.FoundVideo()
			if err != nil {
				return err
			}
			return playAndWait(v)
		}

		if len(args) == 0 {
			return fmt.Errorf("give a URL or --recent N")
		}
		target, ok := video.NormalizeInput(args[0])
		if !ok {
			return fmt.Errorf("not a valid URL: %s", args[0])
		}

		if video.IsVideoFile(target) {
			v, err := video.NewFoundVideo(title, target, 0)
			if err != nil {
				return err
			}
			return playAndWait(v)
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		v, err := detectVideo(ctx, target)
		if err != nil {
			return err
		}
		return playAndWait(v)
	},
}

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().IntP("recent", "r", 0, "Play the Nth entry of recents list")
	playCmd.Flags().StringP("title", "t", "", "Title for a direct video URL")
	playCmd.Flags().Duration("timeout", 30*time.Second, "Give up on the page after this long")
}
