// Package worker keeps the cached engagement scores fresh.
package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"opencanvas-service/apperror"
	"opencanvas-service/events"
	"opencanvas-service/metrics"
	"opencanvas-service/model"
	"opencanvas-service/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DefaultInterval = 10 * time.Minute
	DefaultBatch    = 500
	ConsumerName    = "rescore-worker"
)

// PostSource is the slice of the post store the rescorer uses.
type PostSource interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*model.Post, error)
	ScanForRescore(ctx context.Context, batch int, fn func([]model.Post) error) error
	UpdateScores(ctx context.Context, updates []store.ScoreUpdate) (int64, error)
}

// Subscriber delivers engagement events.
type Subscriber interface {
	Subscribe(durable string, h events.Handler) error
}

// Rescorer recomputes post scores on a schedule and whenever an engagement
// event reports a changed input.
type Rescorer struct {
	Posts    PostSource
	Events   Subscriber
	Interval time.Duration
	Batch    int
	Now      func() time.Time

	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

func NewRescorer(posts PostSource, sub Subscriber, interval time.Duration, batch int) *Rescorer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if batch <= 0 {
		batch = DefaultBatch
	}
	return &Rescorer{Posts: posts, Events: sub, Interval: interval, Batch: batch, Now: time.Now}
}

// Start subscribes to engagement events and launches the scheduler, which
// runs a full rescore immediately and then every Interval.
func (r *Rescorer) Start(ctx context.Context) error {
	log.Println("[INFO] Starting rescore worker...")

	workerCtx, cancel := context.WithCancel(ctx)
	r.cancelFunc = cancel

	if r.Events != nil {
		err := r.Events.Subscribe(ConsumerName, func(ev model.EngagementEvent) error {
			return r.handleEvent(workerCtx, ev)
		})
		if err != nil {
			cancel()
			return fmt.Errorf("subscribe to engagement events: %w", err)
		}
	}

	r.wg.Add(1)
	go r.schedule(workerCtx)
	return nil
}

// Stop cancels the scheduler and waits for the current run to finish.
func (r *Rescorer) Stop() {
	log.Println("[INFO] Stopping rescore worker...")
	if r.cancelFunc != nil {
		r.cancelFunc()
	}
	r.wg.Wait()
}

func (r *Rescorer) schedule(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	r.runAll(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Println("[INFO] Rescore scheduler stopped")
			return
		case <-ticker.C:
			r.runAll(ctx)
		}
	}
}

func (r *Rescorer) runAll(ctx context.Context) {
	n, err := r.RescoreAll(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("[ERROR] Rescore run failed after %d posts: %v", n, err)
		}
		return
	}
	log.Printf("[INFO] Rescored %d posts", n)
}

// RescoreAll recomputes every stored score and returns how many posts were
// visited.
func (r *Rescorer) RescoreAll(ctx context.Context) (int, error) {
	start := time.Now()
	now := r.now()
	total := 0

	err := r.Posts.ScanForRescore(ctx, r.Batch, func(posts []model.Post) error {
		updates := make([]store.ScoreUpdate, 0, len(posts))
		for _, p := range posts {
			updates = append(updates, store.Rescore(p, now))
		}
		if _, err := r.Posts.UpdateScores(ctx, updates); err != nil {
			return err
		}
		total += len(updates)
		metrics.PostsRescored.WithLabelValues("sweep").Add(float64(len(updates)))
		return nil
	})
	if err != nil {
		return total, err
	}

	metrics.RescoreDuration.Observe(time.Since(start).Seconds())
	metrics.LastRescore.SetToCurrentTime()
	return total, nil
}

// RescoreOne recomputes the score of a single post.
func (r *Rescorer) RescoreOne(ctx context.Context, id primitive.ObjectID) error {
	p, err := r.Posts.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := r.Posts.UpdateScores(ctx, []store.ScoreUpdate{store.Rescore(*p, r.now())}); err != nil {
		return err
	}
	metrics.PostsRescored.WithLabelValues("event").Inc()
	return nil
}

// handleEvent rescores the post named by ev. Events for posts that no
// longer exist or carry a bad id are acked and dropped.
func (r *Rescorer) handleEvent(ctx context.Context, ev model.EngagementEvent) error {
	id, err := primitive.ObjectIDFromHex(ev.PostID)
	if err != nil {
		log.Printf("[WARN] Dropping %s event with invalid post id %q", ev.Kind, ev.PostID)
		return nil
	}
	if err := r.RescoreOne(ctx, id); err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return nil
		}
		return err
	}
	return nil
}

func (r *Rescorer) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}
