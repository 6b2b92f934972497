package worker

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/classroom-backend/internal/config"
	"github.com/stemsi/classroom-backend/internal/model"
	"github.com/stemsi/classroom-backend/internal/repository"
)

const (
	GradeBatchSize    = 50
	GradeBatchTimeout = 2 * time.Second
	GradePollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// GradeStore is the persistence the grading worker needs.
type GradeStore interface {
	ListForGrading(ctx context.Context, ids []uuid.UUID) ([]repository.GradingInput, error)
	BulkUpdateScores(ctx context.Context, ids []uuid.UUID, scores []float64) error
}

// GradingWorker scores queued submissions in batches.
type GradingWorker struct {
	store GradeStore
	rdb   *redis.Client
	log   zerolog.Logger
	done  chan struct{}
}

func NewGradingWorker(store GradeStore, rdb *redis.Client, log zerolog.Logger) *GradingWorker {
	return &GradingWorker{
		store: store,
		rdb:   rdb,
		log:   log.With().Str("component", "grading_worker").Logger(),
		done:  make(chan struct{}),
	}
}

type gradePayload struct {
	SubmissionID uuid.UUID `json:"submission_id"`
}

// Done is closed after Start returns and the final batch is flushed.
func (w *GradingWorker) Done() <-chan struct{} { return w.done }

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *GradingWorker) Start(ctx context.Context) {
	defer close(w.done)
	w.log.Info().Msg("GradingWorker started")

	batch := make([]uuid.UUID, 0, GradeBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= GradeBatchSize || time.Since(lastFlush) >= GradeBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, GradePollTimeout, config.WorkerKey.GradeSubmissionsQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
					time.Sleep(time.Second)
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p gradePayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil || p.SubmissionID == uuid.Nil {
				w.log.Error().Str("payload", item[1]).Msg("Invalid grading payload")
				continue
			}

			batch = append(batch, p.SubmissionID)
		}
	}
}

// ----------------------------------------------------------------
// Batch grading
// ----------------------------------------------------------------

func (w *GradingWorker) flushSafe(ctx context.Context, batch []uuid.UUID) {
	if len(batch) == 0 {
		return
	}

	if err := w.gradeBatch(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("size", len(batch)).Msg("Batch grading failed, requeueing")
		w.requeue(batch)
		return
	}

	w.log.Debug().Int("size", len(batch)).Msg("Batch graded")
}

func (w *GradingWorker) gradeBatch(ctx context.Context, batch []uuid.UUID) error {
	inputs, err := w.store.ListForGrading(ctx, batch)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return nil
	}

	ids, scores := ScoreAll(inputs)
	if err := w.store.BulkUpdateScores(ctx, ids, scores); err != nil {
		return err
	}

	w.publishGraded(inputs, scores)
	return nil
}

// publishGraded announces new scores on each exam's monitor channel. Best effort.
func (w *GradingWorker) publishGraded(inputs []repository.GradingInput, scores []float64) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	now := time.Now()
	pipe := w.rdb.Pipeline()
	for i, in := range inputs {
		score := scores[i]
		raw, _ := json.Marshal(model.MonitorEvent{
			Type:         model.MonitorGraded,
			ExamID:       in.ExamID,
			SubmissionID: in.SubmissionID,
			UserID:       in.UserID,
			Score:        &score,
			At:           now,
		})
		pipe.Publish(ctx, config.CacheKey.ExamMonitorChannel(in.ExamID.String()), raw)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Warn().Err(err).Msg("Failed to publish graded events")
	}
}

func (w *GradingWorker) requeue(batch []uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pipe := w.rdb.Pipeline()
	for _, id := range batch {
		raw, _ := json.Marshal(gradePayload{SubmissionID: id})
		pipe.RPush(ctx, config.WorkerKey.GradeSubmissionsQueue, raw)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Int("size", len(batch)).Msg("Requeue failed, submissions stay ungraded")
	}
}

// ----------------------------------------------------------------
// Scoring
// ----------------------------------------------------------------

// ScoreAll grades each input and returns parallel id and score slices.
func ScoreAll(inputs []repository.GradingInput) ([]uuid.UUID, []float64) {
	ids := make([]uuid.UUID, 0, len(inputs))
	scores := make([]float64, 0, len(inputs))
	for _, in := range inputs {
		ids = append(ids, in.SubmissionID)
		scores = append(scores, Score(in.Marks, in.Answers, in.Key))
	}
	return ids, scores
}

// Score returns marks scaled by the fraction of correctly answered questions,
// rounded to two decimals. Answers to questions outside key are ignored.
func Score(marks int, answers model.AnswerSet, key map[uuid.UUID]string) float64 {
	if len(key) == 0 {
		return 0
	}

	correct := 0
	for qID, want := range key {
		if got, ok := answers[qID]; ok && got != nil && *got == want {
			correct++
		}
	}

	raw := float64(marks) * float64(correct) / float64(len(key))
	return math.Round(raw*100) / 100
}
