package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func minutes(n int) *time.Duration {
	d := time.Duration(n) * time.Minute
	return &d
}

func TestNewItemValidation(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		in   ItemInput
		want error
	}{
		{name: "empty name", in: ItemInput{Kind: KindTask, Name: "   "}, want: ErrInvalidName},
		{name: "bad kind", in: ItemInput{Kind: "STORY", Name: "x"}, want: ErrInvalidKind},
		{name: "bad status", in: ItemInput{Kind: KindTask, Name: "x", Status: "BLOCKED"}, want: ErrInvalidStatus},
		{name: "negative duration", in: ItemInput{Kind: KindTask, Name: "x", StartTime: &start, Duration: minutes(-5)}, want: ErrInvalidDuration},
		{name: "negative id", in: ItemInput{ID: intPtr(-7), Kind: KindTask, Name: "x"}, want: ErrInvalidID},
		{name: "subtask without epic", in: ItemInput{Kind: KindSubTask, Name: "x", EpicID: UnassignedID}, want: ErrUnknownEpic},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewItem(tc.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v, want %v", err, tc.want)
		})
	}
}

func TestNewItemNormalizesFields(t *testing.T) {
	local := time.Date(2026, 3, 1, 12, 30, 15, 999, time.FixedZone("CET", 3600))
	d := 90*time.Minute + 42*time.Second

	task, err := NewItem(ItemInput{
		Kind:        KindTask,
		Name:        "  Write report ",
		Description: " quarterly ",
		StartTime:   &local,
		Duration:    &d,
	})
	require.NoError(t, err)
	assert.Equal(t, UnassignedID, task.ID)
	assert.Equal(t, "Write report", task.Name)
	assert.Equal(t, "quarterly", task.Description)
	assert.Equal(t, StatusNew, task.Status)
	assert.Equal(t, UnassignedID, task.EpicID)
	require.NotNil(t, task.StartTime)
	assert.Equal(t, time.UTC, task.StartTime.Location())
	assert.Equal(t, local.Truncate(time.Second).UTC(), *task.StartTime)
	assert.Equal(t, 90*time.Minute, *task.Duration)
	assert.Equal(t, local.Truncate(time.Second).UTC().Add(90*time.Minute), *task.EndTime())
}

func TestNewEpicDropsCallerSchedule(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	epic, err := NewItem(ItemInput{
		Kind:      KindEpic,
		Name:      "Launch",
		Status:    StatusDone,
		StartTime: &start,
		Duration:  minutes(30),
		EpicID:    4,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusNew, epic.Status)
	assert.Nil(t, epic.StartTime)
	assert.Nil(t, epic.Duration)
	assert.Nil(t, epic.EndTime())
	assert.Equal(t, UnassignedID, epic.EpicID)
}

func TestEndTimeUndefinedWithoutFullSchedule(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	onlyStart, err := NewItem(ItemInput{Kind: KindTask, Name: "a", StartTime: &start})
	require.NoError(t, err)
	assert.Nil(t, onlyStart.EndTime())
	assert.False(t, onlyStart.HasInterval())

	onlyDuration, err := NewItem(ItemInput{Kind: KindTask, Name: "b", Duration: minutes(5)})
	require.NoError(t, err)
	assert.Nil(t, onlyDuration.EndTime())
}

func TestOverlaps(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	leaf := func(offsetMin, durMin int) Item {
		item, err := NewItem(ItemInput{
			Kind:      KindTask,
			Name:      "t",
			StartTime: timePtr(base.Add(time.Duration(offsetMin) * time.Minute)),
			Duration:  minutes(durMin),
		})
		require.NoError(t, err)
		return item
	}

	assert.True(t, Overlaps(leaf(0, 10), leaf(5, 10)))
	assert.True(t, Overlaps(leaf(5, 10), leaf(0, 10)))
	assert.True(t, Overlaps(leaf(0, 60), leaf(10, 5)))
	assert.False(t, Overlaps(leaf(0, 10), leaf(10, 10)), "touching intervals are half-open")
	assert.False(t, Overlaps(leaf(0, 10), leaf(20, 10)))
	assert.False(t, Overlaps(leaf(0, 0), leaf(0, 10)), "empty interval never overlaps")

	unscheduled, err := NewItem(ItemInput{Kind: KindTask, Name: "u"})
	require.NoError(t, err)
	assert.False(t, Overlaps(leaf(0, 10), unscheduled))
}

func TestDeriveEpicStatus(t *testing.T) {
	cases := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{name: "empty", want: StatusNew},
		{name: "all new", statuses: []Status{StatusNew, StatusNew}, want: StatusNew},
		{name: "all done", statuses: []Status{StatusDone, StatusDone}, want: StatusDone},
		{name: "new and done", statuses: []Status{StatusNew, StatusDone}, want: StatusInProgress},
		{name: "all in progress", statuses: []Status{StatusInProgress, StatusInProgress}, want: StatusInProgress},
		{name: "done and in progress", statuses: []Status{StatusDone, StatusInProgress}, want: StatusInProgress},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveEpicStatus(tc.statuses))
		})
	}
}

func TestDeriveEpicStatusIncrementalMatchesScratch(t *testing.T) {
	statuses := Statuses()
	for _, a := range statuses {
		for _, b := range statuses {
			for _, c := range statuses {
				current := []Status{a, b, c}
				for idx := range current {
					for _, next := range statuses {
						changed := append([]Status(nil), current...)
						changed[idx] = next
						scratch := DeriveEpicStatus([]Status{changed[0], changed[1], changed[2]})
						assert.Equal(t, scratch, DeriveEpicStatus(changed))
					}
				}
			}
		}
	}
}

func TestRollupDerivesStatusAndSpan(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	epic, err := NewItem(ItemInput{ID: intPtr(1), Kind: KindEpic, Name: "E"})
	require.NoError(t, err)

	sub := func(id int, status Status, offsetMin, durMin int) Item {
		item, err := NewItem(ItemInput{
			ID:        intPtr(id),
			Kind:      KindSubTask,
			Name:      "s",
			Status:    status,
			StartTime: timePtr(base.Add(time.Duration(offsetMin) * time.Minute)),
			Duration:  minutes(durMin),
			EpicID:    1,
		})
		require.NoError(t, err)
		return item
	}
	unscheduled, err := NewItem(ItemInput{ID: intPtr(9), Kind: KindSubTask, Name: "u", Status: StatusNew, EpicID: 1})
	require.NoError(t, err)

	require.NoError(t, epic.Rollup([]Item{sub(4, StatusDone, 60, 30), sub(2, StatusNew, 0, 15), unscheduled}))
	assert.Equal(t, StatusInProgress, epic.Status)
	assert.Equal(t, []int{2, 4, 9}, epic.SubTaskIDs)
	require.NotNil(t, epic.StartTime)
	assert.Equal(t, base, *epic.StartTime)
	assert.Equal(t, base.Add(90*time.Minute), *epic.EndTime())

	require.NoError(t, epic.Rollup(nil))
	assert.Equal(t, StatusNew, epic.Status)
	assert.Nil(t, epic.StartTime)
	assert.Nil(t, epic.EndTime())
	assert.Empty(t, epic.SubTaskIDs)

	task, err := NewItem(ItemInput{Kind: KindTask, Name: "t"})
	require.NoError(t, err)
	assert.ErrorIs(t, task.Rollup(nil), ErrNotAnEpic)
}

func TestSetStatusRejectsEpic(t *testing.T) {
	epic, err := NewItem(ItemInput{Kind: KindEpic, Name: "E"})
	require.NoError(t, err)
	assert.ErrorIs(t, epic.SetStatus(StatusDone), ErrImmutableDerivedField)

	task, err := NewItem(ItemInput{Kind: KindTask, Name: "T"})
	require.NoError(t, err)
	require.NoError(t, task.SetStatus(StatusDone))
	assert.Equal(t, StatusDone, task.Status)
	assert.ErrorIs(t, task.SetStatus("LATER"), ErrInvalidStatus)
}

func TestSameUsesIDAndKind(t *testing.T) {
	a, err := NewItem(ItemInput{ID: intPtr(3), Kind: KindTask, Name: "a"})
	require.NoError(t, err)
	b, err := NewItem(ItemInput{ID: intPtr(3), Kind: KindTask, Name: "b", Status: StatusDone})
	require.NoError(t, err)
	c, err := NewItem(ItemInput{ID: intPtr(3), Kind: KindEpic, Name: "a"})
	require.NoError(t, err)

	assert.True(t, a.Same(b))
	assert.False(t, a.Same(c))
}

func TestCloneIsDeep(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	item, err := NewItem(ItemInput{Kind: KindTask, Name: "a", StartTime: &start, Duration: minutes(10)})
	require.NoError(t, err)

	clone := item.Clone()
	*clone.StartTime = clone.StartTime.Add(time.Hour)
	*clone.Duration = time.Minute
	assert.Equal(t, start, *item.StartTime)
	assert.Equal(t, 10*time.Minute, *item.Duration)
}

func TestMinutesDuration(t *testing.T) {
	d, err := MinutesDuration(90)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)

	d, err = MinutesDuration(MaxDurationMinutes)
	require.NoError(t, err)
	assert.Positive(t, d)

	for _, bad := range []int64{-1, MaxDurationMinutes + 1, 400_000_000} {
		_, err := MinutesDuration(bad)
		assert.ErrorIs(t, err, ErrInvalidDuration, "minutes=%d", bad)
	}
}

func TestParseStatusAndKind(t *testing.T) {
	status, err := ParseStatus("in-progress")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, status)
	_, err = ParseStatus("waiting")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.Equal(t, StatusInProgress, StatusNew.Next())
	assert.Equal(t, StatusNew, StatusDone.Next())

	kind, err := ParseKind("sub-task")
	require.NoError(t, err)
	assert.Equal(t, KindSubTask, kind)
	kind, err = ParseKind("epic")
	require.NoError(t, err)
	assert.Equal(t, KindEpic, kind)
	_, err = ParseKind("story")
	assert.ErrorIs(t, err, ErrInvalidKind)

	assert.True(t, KindTask.IsLeaf())
	assert.True(t, KindSubTask.Capabilities().HasOwner)
	assert.True(t, KindEpic.Capabilities().IsContainer)
	assert.False(t, KindEpic.IsLeaf())
	assert.Equal(t, "subtask", KindSubTask.Label())
}
