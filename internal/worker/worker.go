package worker

import (
	"context"
	"errors"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ugcforge/broll/internal/config"
	"github.com/ugcforge/broll/internal/db"
	"github.com/ugcforge/broll/internal/models"
	"github.com/ugcforge/broll/internal/pipeline"
	"github.com/ugcforge/broll/internal/queue"
)

// Worker dequeues runs and drives the generation pipeline for each one.
type Worker struct {
	db       *db.DB
	queue    *queue.Queue
	pipeline *pipeline.Pipeline
	cfg      *config.Config
}

func New(database *db.DB, q *queue.Queue, p *pipeline.Pipeline, cfg *config.Config) *Worker {
	return &Worker{
		db:       database,
		queue:    q,
		pipeline: p,
		cfg:      cfg,
	}
}

// Start runs concurrency worker loops until ctx is cancelled.
func (w *Worker) Start(ctx context.Context, concurrency int) {
	log.Printf("Worker started with concurrency: %d", concurrency)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			w.processQueue(ctx)
			return nil
		})
	}

	g.Wait()
	log.Println("Worker shutting down...")
}

func (w *Worker) processQueue(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			job, err := w.queue.DequeueRun(ctx, 5*time.Second)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				log.Printf("Error dequeuing run: %v", err)
				continue
			}

			if job == nil {
				continue // No job available, retry
			}

			w.processRun(ctx, job.RunID)
		}
	}
}

func (w *Worker) processRun(ctx context.Context, runID uuid.UUID) {
	run, err := w.db.GetRun(ctx, runID)
	if err != nil {
		log.Printf("Run %s: %v", runID, err)
		return
	}

	log.Printf("Processing run %s (topic: %q)", run.ID, run.Topic)

	if err := w.db.UpdateRunStatus(ctx, run.ID, models.RunStatusScripting); err != nil {
		log.Printf("Run %s: failed to update status: %v", run.ID, err)
	}

	opts := pipeline.Options{
		Topic:            run.Topic,
		NumScenes:        run.SceneCount,
		OutputDir:        filepath.Join(w.cfg.OutputBaseDir, run.ID.String()),
		ProductImagePath: w.cfg.ProductImagePath,
		MaxImageWorkers:  w.cfg.MaxImageWorkers,
		MaxClipWorkers:   w.cfg.MaxClipWorkers,
		DryRun:           run.DryRun,
		RemoveBackground: run.RemoveBackground,
		EnableMusic:      run.EnableMusic,
		Upload:           run.Upload,
	}
	if run.Voice != nil {
		opts.Voice = *run.Voice
	}

	result := w.pipeline.Run(ctx, opts)

	if result.Err != nil {
		log.Printf("Run %s failed: %v", run.ID, result.Err)
		if err := w.db.FailRun(ctx, run.ID, result.Err.Error()); err != nil {
			log.Printf("Run %s: failed to record failure: %v", run.ID, err)
		}
		return
	}

	if len(result.Warnings) > 0 {
		log.Printf("Run %s completed with %d warning(s): %s",
			run.ID, len(result.Warnings), strings.Join(result.Warnings, "; "))
	}

	if err := w.db.CompleteRun(ctx, run.ID, opts.OutputDir, result.FinalVideoPath,
		result.PublicURL, result.ScenesSucceeded); err != nil {
		log.Printf("Run %s: failed to record completion: %v", run.ID, err)
		return
	}

	log.Printf("Run %s completed: %s", run.ID, result.FinalVideoPath)
}
