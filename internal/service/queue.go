package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// QueueSubmitter hands final submissions to the submission worker through
// Redis and marks the session as submitted in the same transaction.
type QueueSubmitter struct {
	rdb       *redis.Client
	markerTTL time.Duration
}

// NewQueueSubmitter creates a new QueueSubmitter. A zero markerTTL keeps the
// submitted marker forever.
func NewQueueSubmitter(rdb *redis.Client, markerTTL time.Duration) *QueueSubmitter {
	return &QueueSubmitter{rdb: rdb, markerTTL: markerTTL}
}

// Submit enqueues sub onto persist_submissions_queue.
func (q *QueueSubmitter) Submit(ctx context.Context, sub model.Submission) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}

	pipe := q.rdb.TxPipeline()
	pipe.RPush(ctx, config.WorkerKey.PersistSubmissionsQueue, data)
	pipe.Set(ctx, config.CacheKey.SessionSubmittedKey(sub.SessionID), sub.SubmittedAt.Unix(), q.markerTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue submission: %w", err)
	}

	publishMonitorEvent(ctx, q.rdb, sub.TestID, MonitorEvent{
		Type:        MonitorEventSubmitted,
		CandidateID: sub.CandidateID,
		Forced:      sub.Forced,
		At:          sub.SubmittedAt,
	})
	return nil
}

// MonitorEventType tags events published on a test's monitor channel.
type MonitorEventType string

const (
	MonitorEventViolation MonitorEventType = "violation"
	MonitorEventSubmitted MonitorEventType = "submitted"
)

// MonitorEvent is pushed to proctors watching a test.
type MonitorEvent struct {
	Type           MonitorEventType `json:"type"`
	CandidateID    string           `json:"candidate_id"`
	ViolationCount int              `json:"violation_count,omitempty"`
	Forced         bool             `json:"forced,omitempty"`
	At             time.Time        `json:"at"`
}

// publishMonitorEvent is fire-and-forget: monitors also refresh on a timer.
func publishMonitorEvent(ctx context.Context, rdb *redis.Client, testID string, ev MonitorEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	rdb.Publish(ctx, config.CacheKey.TestMonitorChannel(testID), data)
}

// QueueJournal pushes answer and violation events for the autosave and
// violation workers.
type QueueJournal struct {
	rdb *redis.Client
	now func() time.Time
}

// NewQueueJournal creates a new QueueJournal.
func NewQueueJournal(rdb *redis.Client) *QueueJournal {
	return &QueueJournal{rdb: rdb, now: time.Now}
}

func (j *QueueJournal) RecordAnswer(ctx context.Context, ref model.SessionRef, questionID, answer string) error {
	return j.push(ctx, config.WorkerKey.PersistAnswersQueue, model.AnswerEvent{
		SessionRef: ref,
		QuestionID: questionID,
		Answer:     answer,
		At:         j.now(),
	})
}

func (j *QueueJournal) RecordViolation(ctx context.Context, ref model.SessionRef, count int, at time.Time) error {
	if err := j.push(ctx, config.WorkerKey.PersistViolationsQueue, model.ViolationEvent{
		SessionRef: ref,
		Count:      count,
		At:         at,
	}); err != nil {
		return err
	}

	publishMonitorEvent(ctx, j.rdb, ref.TestID, MonitorEvent{
		Type:           MonitorEventViolation,
		CandidateID:    ref.CandidateID,
		ViolationCount: count,
		At:             at,
	})
	return nil
}

func (j *QueueJournal) push(ctx context.Context, queue string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := j.rdb.RPush(ctx, queue, data).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", queue, err)
	}
	return nil
}

// SubmissionLookup reports whether a session has a stored submission.
type SubmissionLookup interface {
	Exists(ctx context.Context, sessionID string) (bool, error)
}

// SubmissionGuard answers "was this session already submitted" from the
// Redis marker first and the submissions table second. The marker covers the
// window before the submission worker has written the row.
type SubmissionGuard struct {
	rdb  *redis.Client
	repo SubmissionLookup
}

// NewSubmissionGuard creates a new SubmissionGuard. Either source may be nil.
func NewSubmissionGuard(rdb *redis.Client, repo SubmissionLookup) *SubmissionGuard {
	return &SubmissionGuard{rdb: rdb, repo: repo}
}

func (g *SubmissionGuard) Submitted(ctx context.Context, sessionID string) (bool, error) {
	if g.rdb != nil {
		n, err := g.rdb.Exists(ctx, config.CacheKey.SessionSubmittedKey(sessionID)).Result()
		if err != nil {
			return false, fmt.Errorf("check submitted marker: %w", err)
		}
		if n > 0 {
			return true, nil
		}
	}
	if g.repo == nil {
		return false, nil
	}
	return g.repo.Exists(ctx, sessionID)
}
