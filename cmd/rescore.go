package cmd

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"opencanvas-service/store"
	"opencanvas-service/worker"

	"github.com/spf13/cobra"
)

var rescoreCmd = &cobra.Command{
	Use:   "rescore",
	Short: "Recompute every stored engagement score once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		mongoClient, err := store.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			return err
		}
		defer mongoClient.Disconnect(context.Background())

		db := mongoClient.Database(cfg.Mongo.Database)
		store.EnsureIndexes(ctx, db)

		batch, _ := cmd.Flags().GetInt("batch")
		if batch <= 0 {
			batch = cfg.Rescore.BatchSize
		}

		start := time.Now()
		r := worker.NewRescorer(store.NewPostStore(db), nil, cfg.Rescore.Interval, batch)
		n, err := r.RescoreAll(ctx)
		if err != nil {
			return err
		}
		log.Printf("[INFO] Rescored %d posts in %s", n, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	rescoreCmd.Flags().Int("batch", 0, "posts per bulk write (default: rescore.batch_size)")
	rootCmd.AddCommand(rescoreCmd)
}
