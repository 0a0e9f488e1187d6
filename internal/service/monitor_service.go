package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// ProgressSource reads journaled progress for a test.
type ProgressSource interface {
	GetAnsweredCounts(ctx context.Context, testID string) (map[string]int64, error)
	GetViolationCounts(ctx context.Context, testID string) (map[string]int64, error)
}

// SubmissionLister lists persisted submissions for a test.
type SubmissionLister interface {
	ListByTest(ctx context.Context, testID string) ([]model.SubmissionSummary, error)
}

// LiveSessions exposes the sessions running on this node.
type LiveSessions interface {
	LiveViews(ctx context.Context, testID string) []model.SessionView
}

// MonitorService orchestrates live test monitoring business logic.
type MonitorService struct {
	progress    ProgressSource
	submissions SubmissionLister
	live        LiveSessions
	now         func() time.Time
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(progress ProgressSource, submissions SubmissionLister, live LiveSessions) *MonitorService {
	return &MonitorService{progress: progress, submissions: submissions, live: live, now: time.Now}
}

// GetTestProgress merges journaled counts, stored submissions and live
// sessions. The three fetches run concurrently.
func (s *MonitorService) GetTestProgress(ctx context.Context, testID string) (*model.TestProgress, error) {
	var (
		answeredCounts  map[string]int64
		violationCounts map[string]int64
		submissions     []model.SubmissionSummary
		answeredErr     error
		violationErr    error
		submissionsErr  error
		wg              sync.WaitGroup
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		answeredCounts, answeredErr = s.progress.GetAnsweredCounts(ctx, testID)
	}()
	go func() {
		defer wg.Done()
		violationCounts, violationErr = s.progress.GetViolationCounts(ctx, testID)
	}()
	go func() {
		defer wg.Done()
		submissions, submissionsErr = s.submissions.ListByTest(ctx, testID)
	}()

	views := s.live.LiveViews(ctx, testID)
	wg.Wait()

	// Answered counts and submissions are critical; violation counts are best-effort.
	if answeredErr != nil {
		return nil, answeredErr
	}
	if submissionsErr != nil {
		return nil, submissionsErr
	}
	if violationErr != nil {
		violationCounts = nil
	}

	rows := make(map[string]*model.CandidateProgress)
	row := func(cid string) *model.CandidateProgress {
		p, ok := rows[cid]
		if !ok {
			p = &model.CandidateProgress{CandidateID: cid}
			rows[cid] = p
		}
		return p
	}

	out := &model.TestProgress{
		TestID:       testID,
		LiveSessions: len(views),
		Submissions:  submissions,
		GeneratedAt:  s.now(),
	}
	if out.Submissions == nil {
		out.Submissions = []model.SubmissionSummary{}
	}

	for cid, n := range answeredCounts {
		row(cid).AnsweredCount = n
	}
	for cid, n := range violationCounts {
		row(cid).ViolationCount = n
	}
	for _, sub := range submissions {
		p := row(sub.CandidateID)
		p.Submitted = true
		p.AnsweredCount = int64(sub.AnsweredCount)
		p.ViolationCount = max(p.ViolationCount, int64(sub.ViolationCount))
	}
	// Live state is fresher than anything the workers have written.
	for i := range views {
		v := views[i]
		p := row(v.CandidateID)
		p.Live = &v
		p.AnsweredCount = int64(len(v.Answers))
		p.ViolationCount = max(p.ViolationCount, int64(v.ViolationCount))
	}

	out.Candidates = make([]model.CandidateProgress, 0, len(rows))
	for _, p := range rows {
		out.TotalViolations += p.ViolationCount
		out.Candidates = append(out.Candidates, *p)
	}
	sort.Slice(out.Candidates, func(i, j int) bool {
		return out.Candidates[i].CandidateID < out.Candidates[j].CandidateID
	})
	return out, nil
}
