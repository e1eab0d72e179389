package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"opencanvas-service/cache"
	"opencanvas-service/config"
	"opencanvas-service/events"
	"opencanvas-service/feed"
	"opencanvas-service/handler"
	"opencanvas-service/metrics"
	"opencanvas-service/router"
	"opencanvas-service/store"
	"opencanvas-service/worker"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the rescore worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cfg *config.Config) error {
	metrics.Init(cfg.App.Name, cfg.App.Version, cfg.App.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mongoClient, err := store.Connect(ctx, cfg.Mongo.URI)
	if err != nil {
		return err
	}
	defer mongoClient.Disconnect(context.Background())

	db := mongoClient.Database(cfg.Mongo.Database)
	store.EnsureIndexes(ctx, db)

	posts := store.NewPostStore(db)
	users := store.NewUserStore(db)

	h := &handler.Handler{
		Service:      cfg.App.Name,
		Feed:         feed.NewService(posts),
		Posts:        posts,
		Users:        users,
		Comments:     store.NewCommentStore(db),
		Collections:  store.NewCollectionStore(db),
		Events:       events.Discard{},
		DefaultLimit: cfg.Feed.DefaultLimit,
		Development:  cfg.IsDevelopment(),
		Checks: map[string]handler.Check{
			"mongo": func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
		},
	}

	var subscriber worker.Subscriber
	if cfg.NATS.URL != "" {
		stream, err := events.Connect(events.Config{URL: cfg.NATS.URL, ClientName: cfg.App.Name})
		if err != nil {
			return err
		}
		defer stream.Close()
		h.Events = stream
		subscriber = stream
		h.Checks["nats"] = func(context.Context) error {
			if !stream.IsConnected() {
				return errors.New("not connected")
			}
			return nil
		}
	} else {
		log.Println("[WARN] NATS_URL not set, scores refresh on the schedule only")
	}

	rdb, err := cache.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Printf("[WARN] View limiter disabled: %v", err)
	} else {
		defer rdb.Close()
		h.Views = cache.NewViewLimiter(cache.NewRedisKV(rdb), cfg.Views.Relaxation, cfg.Views.MaxPerVisitor)
		h.Checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	rescorer := worker.NewRescorer(posts, subscriber, cfg.Rescore.Interval, cfg.Rescore.BatchSize)
	if err := rescorer.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: router.Setup(h, router.Options{CORSOrigins: cfg.HTTP.CORSOrigins, JWTSecret: []byte(cfg.Auth.JWTSecret)}),
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("[INFO] %s starting on %s", cfg.App.Name, cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		rescorer.Stop()
		return err
	}

	log.Printf("[INFO] Shutting down %s...", cfg.App.Name)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	rescorer.Stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Printf("[INFO] %s stopped", cfg.App.Name)
	return nil
}
