package session

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-proctor/internal/model"
)

func TestLedger_AnswerImpliesVisited(t *testing.T) {
	l := NewLedger([]model.Section{section("s1", 3)})

	require.NoError(t, l.SelectAnswer("s1-q3", "C"))
	assert.True(t, l.IsVisited("s1-q3"))

	a, ok := l.Answer("s1-q3")
	assert.True(t, ok)
	assert.Equal(t, "C", a)
}

func TestLedger_RejectsBadInput(t *testing.T) {
	l := NewLedger([]model.Section{section("s1", 2)})

	assert.ErrorIs(t, l.SelectAnswer("nope", "A"), ErrUnknownQuestion)
	assert.ErrorIs(t, l.SelectAnswer("s1-q1", "E"), ErrInvalidOption)
	assert.ErrorIs(t, l.GoTo(2), ErrIndexOutOfRange)
	assert.ErrorIs(t, l.GoTo(-1), ErrIndexOutOfRange)
}

func TestLedger_ClearResponseDropsMark(t *testing.T) {
	l := NewLedger([]model.Section{section("s1", 2)})
	require.NoError(t, l.SelectAnswer("s1-q1", "A"))
	marked, err := l.ToggleReviewMark("s1-q1")
	require.NoError(t, err)
	assert.True(t, marked)

	require.NoError(t, l.ClearResponse("s1-q1"))
	_, ok := l.Answer("s1-q1")
	assert.False(t, ok)
	assert.False(t, l.IsMarked("s1-q1"))
	assert.True(t, l.IsVisited("s1-q1"))
}

func TestLedger_SectionCountsPrecedence(t *testing.T) {
	l := NewLedger([]model.Section{section("s1", 5)})
	l.VisitCurrent()
	require.NoError(t, l.SelectAnswer("s1-q2", "B"))
	require.NoError(t, l.SelectAnswer("s1-q3", "C"))
	_, err := l.ToggleReviewMark("s1-q3")
	require.NoError(t, err)
	_, err = l.ToggleReviewMark("s1-q4")
	require.NoError(t, err)

	assert.Equal(t, model.SectionCounts{Answered: 1, NotAnswered: 1, Marked: 2, NotVisited: 1}, l.SectionCounts())
}

func TestLedger_SectionsAreOneWay(t *testing.T) {
	l := NewLedger([]model.Section{section("s1", 2), section("s2", 2)})

	assert.False(t, l.Advance())
	assert.True(t, l.Advance(), "last question completes the section")
	si, qi := l.Position()
	assert.Equal(t, 0, si)
	assert.Equal(t, 1, qi)

	require.True(t, l.NextSection())
	assert.False(t, l.NextSection())
	si, qi = l.Position()
	assert.Equal(t, 1, si)
	assert.Equal(t, 0, qi)
	assert.True(t, l.IsVisited("s2-q1"))

	assert.ErrorIs(t, l.SelectAnswer("s1-q1", "A"), ErrSectionLocked)
	assert.ErrorIs(t, l.ClearResponse("s1-q1"), ErrSectionLocked)
	_, err := l.ToggleReviewMark("s1-q2")
	assert.ErrorIs(t, err, ErrSectionLocked)
}

func TestLedger_PartitionSumsUnderRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	sections := []model.Section{section("s1", 7), section("s2", 4), section("s3", 9)}
	l := NewLedger(sections)
	l.VisitCurrent()

	lastSection := 0
	for step := 0; step < 2000; step++ {
		si, _ := l.Position()
		sec := sections[si]
		q := sec.Questions[rng.Intn(len(sec.Questions))]

		switch rng.Intn(7) {
		case 0:
			_ = l.SelectAnswer(q.ID, model.OptionLabels[rng.Intn(4)])
		case 1:
			_ = l.ClearResponse(q.ID)
		case 2:
			_, _ = l.ToggleReviewMark(q.ID)
		case 3:
			_ = l.GoTo(rng.Intn(len(sec.Questions) + 1))
		case 4:
			l.Advance()
		case 5:
			if rng.Intn(20) == 0 {
				l.NextSection()
			}
		case 6:
			l.Credit(1)
		}

		for i, s := range sections {
			c := l.SectionCountsAt(i)
			require.Equal(t, len(s.Questions), c.Total(), "step %d section %d", step, i)
		}
		for qid := range l.Answers() {
			require.True(t, l.IsVisited(qid), "answered %s must be visited", qid)
		}
		cur, _ := l.Position()
		require.GreaterOrEqual(t, cur, lastSection, "section index never decreases")
		lastSection = cur
	}
}

func TestLedger_SnapshotRestoreRoundTrip(t *testing.T) {
	sections := []model.Section{section("s1", 3), section("s2", 3)}
	l := NewLedger(sections)
	l.VisitCurrent()
	require.NoError(t, l.SelectAnswer("s1-q1", "A"))
	require.NoError(t, l.SelectAnswer("s1-q2", "D"))
	_, err := l.ToggleReviewMark("s1-q3")
	require.NoError(t, err)
	l.Credit(7)
	require.True(t, l.NextSection())
	require.NoError(t, l.GoTo(2))

	cp := &model.Checkpoint{}
	l.snapshot(cp)

	restored := NewLedger(sections)
	assert.Empty(t, restored.restore(cp))
	assert.Equal(t, l.Answers(), restored.Answers())
	assert.Equal(t, l.Marked(), restored.Marked())
	assert.Equal(t, l.Visited(), restored.Visited())
	assert.Equal(t, 7, restored.TimeSpent("s1-q1"))
	si, qi := restored.Position()
	assert.Equal(t, 1, si)
	assert.Equal(t, 2, qi)
}

func TestLedger_RestoreRepairsBadRecords(t *testing.T) {
	sections := []model.Section{section("s1", 2)}
	bigSection, bigQuestion := 5, 9
	cp := &model.Checkpoint{
		Answers:       map[string]string{"s1-q1": "B", "s1-q2": "Z", "ghost": "A"},
		Visited:       []string{"ghost"},
		SectionIndex:  &bigSection,
		QuestionIndex: &bigQuestion,
	}

	l := NewLedger(sections)
	repaired := l.restore(cp)

	assert.ElementsMatch(t, []string{"answer:s1-q2", "answer:ghost", "visited:s1-q1", "section_index", "question_index"}, repaired)
	assert.Equal(t, map[string]string{"s1-q1": "B"}, l.Answers())
	assert.Equal(t, []string{"s1-q1"}, l.Visited())
	si, qi := l.Position()
	assert.Equal(t, 0, si)
	assert.Equal(t, 0, qi)
}
