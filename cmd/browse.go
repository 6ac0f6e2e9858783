package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scrimm/scrimm/internal/browser"
	"github.com/scrimm/scrimm/internal/handoff"
	"github.com/scrimm/scrimm/pkg/video"
)

var errNoVideo = errors.New("no video found")

var browseCmd = &cobra.Command{
	Use:   "browse <url>",
	Short: "Load a page and print the video it plays",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout, _ := cmd.Flags().GetDuration("timeout")
		play, _ := cmd.Flags().GetBool("play")

		target, ok := video.NormalizeInput(args[0])
		if !ok {
			return fmt.Errorf("not a valid URL: %s", args[0])
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		v, err := detectVideo(ctx, target)
		if err != nil {
			return err
		}

		fmt.Printf("%s\n%s\n", v.PageTitle, v.URLString())
		if !play {
			return nil
		}
		return playAndWait(v)
	},
}

func init() {
	rootCmd.AddCommand(browseCmd)
	browseCmd.Flags().Duration("timeout", 30*time.Second, "Give up on the page after this long")
	browseCmd.Flags().Bool("play", false, "Play the video once found")
}

// detectVideo loads target headlessly and returns the first video the page
// view accepts.
func detectVideo(ctx context.Context, target *url.URL) (video.FoundVideo, error) {
	client, err := newHTTPClient()
	if err != nil {
		return video.FoundVideo{}, err
	}

	found := make(chan video.FoundVideo, 1)
	s := browser.NewSession(browser.NewStaticRenderer(client), func(v video.FoundVideo) {
		select {
		case found <- v:
		default:
		}
	})
	defer s.Close()

	if err := s.Navigate(ctx, target); err != nil {
		return video.FoundVideo{}, err
	}
	if err := s.Sync(ctx); err != nil {
		return video.FoundVideo{}, err
	}
	select {
	case v := <-found:
		return v, nil
	default:
		return video.FoundVideo{}, fmt.Errorf("%w on %s", errNoVideo, target)
	}
}

// playAndWait plays v and blocks until the player exits or the user
// interrupts, saving the position either way.
func playAndWait(v video.FoundVideo) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec, err := openRecents()
	if err != nil {
		return err
	}
	defer rec.Close()

	h := newPlayer()
	if err := handoff.New(rec, h).Play(ctx, v); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		h.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return h.Close()
	}
	return nil
}
