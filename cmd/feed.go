package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"opencanvas-service/client"
	"opencanvas-service/feed"

	"github.com/spf13/cobra"
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Read the anonymous feed of a running server",
	Example: "  opencanvas feed --kind social --limit 10 --pages 2\n" +
		"  opencanvas feed --server https://api.example.com --kind articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		rawKind, _ := cmd.Flags().GetString("kind")
		kind, err := feed.ParseKind(rawKind)
		if err != nil {
			return err
		}
		server, _ := cmd.Flags().GetString("server")
		limit, _ := cmd.Flags().GetInt("limit")
		pages, _ := cmd.Flags().GetInt("pages")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		consumer := client.NewFeedConsumer(client.New(server, timeout), kind, limit)
		_, err = readFeed(ctx, cmd.OutOrStdout(), consumer, pages)
		return err
	},
}

func init() {
	feedCmd.Flags().String("server", "http://localhost:8080", "base URL of the API")
	feedCmd.Flags().String("kind", string(feed.KindSocial), "feed to read: social or articles")
	feedCmd.Flags().Int("limit", feed.DefaultLimit, "posts per page")
	feedCmd.Flags().Int("pages", 1, "pages to load, 0 reads until the feed is exhausted")
	feedCmd.Flags().Duration("timeout", 10*time.Second, "per request timeout")
	rootCmd.AddCommand(feedCmd)
}

// readFeed loads up to pages pages and writes one line per new post. It
// returns the number of posts written.
func readFeed(ctx context.Context, w io.Writer, consumer *client.FeedConsumer, pages int) (int, error) {
	printed := 0
	for page := 0; pages <= 0 || page < pages; page++ {
		if !consumer.HasMore() {
			break
		}
		if _, err := consumer.Next(ctx); err != nil {
			return printed, fmt.Errorf("load feed page %d: %w", page+1, err)
		}
		items := consumer.Items()
		for _, p := range items[printed:] {
			fmt.Fprintf(w, "%8.2f  %-24s  %s  %s\n", p.Score, p.ID.Hex(), p.Author.Name, p.Title)
		}
		printed = len(items)
	}
	if !consumer.HasMore() {
		fmt.Fprintln(w, "-- end of feed --")
	}
	return printed, nil
}
