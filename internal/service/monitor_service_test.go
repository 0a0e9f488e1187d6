package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-proctor/internal/model"
)

type fakeProgress struct {
	answered     map[string]int64
	violations   map[string]int64
	answeredErr  error
	violationErr error
}

func (f fakeProgress) GetAnsweredCounts(context.Context, string) (map[string]int64, error) {
	return f.answered, f.answeredErr
}

func (f fakeProgress) GetViolationCounts(context.Context, string) (map[string]int64, error) {
	return f.violations, f.violationErr
}

type fakeSubmissions []model.SubmissionSummary

func (f fakeSubmissions) ListByTest(context.Context, string) ([]model.SubmissionSummary, error) {
	return f, nil
}

type fakeLive []model.SessionView

func (f fakeLive) LiveViews(context.Context, string) []model.SessionView { return f }

func TestMonitorService_MergesSources(t *testing.T) {
	progress := fakeProgress{
		answered:   map[string]int64{"c1": 2, "c2": 5, "c3": 1},
		violations: map[string]int64{"c1": 1, "c3": 2},
	}
	subs := fakeSubmissions{{SessionID: "s2", CandidateID: "c2", AnsweredCount: 6, ViolationCount: 3}}
	live := fakeLive{{
		SessionID:      "s1",
		CandidateID:    "c1",
		Phase:          model.PhaseMcqActive,
		Answers:        map[string]string{"q1": "A", "q2": "B", "q3": "D"},
		ViolationCount: 2,
	}}

	svc := NewMonitorService(progress, subs, live)
	svc.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	got, err := svc.GetTestProgress(context.Background(), "t1")
	require.NoError(t, err)

	assert.Equal(t, 1, got.LiveSessions)
	require.Len(t, got.Candidates, 3)

	c1, c2, c3 := got.Candidates[0], got.Candidates[1], got.Candidates[2]
	assert.Equal(t, "c1", c1.CandidateID)
	require.NotNil(t, c1.Live)
	assert.EqualValues(t, 3, c1.AnsweredCount)
	assert.EqualValues(t, 2, c1.ViolationCount)

	assert.True(t, c2.Submitted)
	assert.EqualValues(t, 6, c2.AnsweredCount)
	assert.EqualValues(t, 3, c2.ViolationCount)

	assert.Nil(t, c3.Live)
	assert.EqualValues(t, 1, c3.AnsweredCount)

	assert.EqualValues(t, 7, got.TotalViolations)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), got.GeneratedAt)
}

func TestMonitorService_ViolationsBestEffort(t *testing.T) {
	progress := fakeProgress{
		answered:     map[string]int64{"c1": 2},
		violationErr: errors.New("timeout"),
	}
	svc := NewMonitorService(progress, fakeSubmissions(nil), fakeLive(nil))

	got, err := svc.GetTestProgress(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, got.Candidates, 1)
	assert.Zero(t, got.TotalViolations)
	assert.NotNil(t, got.Submissions)

	progress.answeredErr = errors.New("down")
	_, err = NewMonitorService(progress, fakeSubmissions(nil), fakeLive(nil)).GetTestProgress(context.Background(), "t1")
	assert.Error(t, err)
}
