package presets

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus/morningshift/internal/db"
	"github.com/marcus/morningshift/internal/workout"
)

const sampleJSON = `{
  "pomodoroPresets": [
    {
      "id": "classic_20_5",
      "name": "Classic workout",
      "description": "Full session",
      "workDuration": 1200,
      "breakDuration": 300,
      "cycles": 4,
      "exercises": [
        {"name": "Squats", "description": "Keep your back straight"},
        {"name": "Plank", "description": "Hold"}
      ]
    },
    {
      "id": "quick_test",
      "name": "Quick test",
      "workDuration": 10,
      "breakDuration": 5,
      "cycles": 2
    }
  ]
}`

const sampleYAML = `pomodoroPresets:
  - id: stretch
    name: Stretch
    workDuration: 60
    breakDuration: 0
    cycles: 3
    exercises:
      - name: Reach
        description: Arms up
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestPreset_Plan(t *testing.T) {
	p := Preset{ID: "x", WorkDuration: 20, BreakDuration: 5, Cycles: 2}
	assert.Equal(t, 20*time.Second, p.Work())
	assert.Equal(t, 5*time.Second, p.Break())

	plan, err := p.Plan()
	require.NoError(t, err)
	assert.Equal(t, 3, plan.Len())

	_, err = Preset{ID: "bad", WorkDuration: 0, Cycles: 1}.Plan()
	assert.ErrorIs(t, err, workout.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "bad")
}

func TestPreset_DurationsBeyondLimitRejected(t *testing.T) {
	huge := Preset{ID: "huge", WorkDuration: 18523372036, BreakDuration: 5, Cycles: 1}
	_, err := huge.Plan()
	assert.ErrorIs(t, err, workout.ErrInvalidConfig)

	_, err = Static{huge}.Load()
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Static{{ID: "rest", WorkDuration: 60, BreakDuration: maxSeconds + 1, Cycles: 2}}.Load()
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Preset{ID: "many", WorkDuration: 60, Cycles: math.MaxInt}.Plan()
	assert.ErrorIs(t, err, workout.ErrInvalidConfig)

	edge := Preset{ID: "day", WorkDuration: maxSeconds, BreakDuration: maxSeconds, Cycles: 2}
	_, err = Static{edge}.Load()
	require.NoError(t, err)
	assert.Equal(t, workout.MaxPhaseDuration, edge.Work())
}

func TestFile_LoadJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.json", sampleJSON)

	list, err := NewFile(path).Load()
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "classic_20_5", list[0].ID)
	assert.Equal(t, 1200, list[0].WorkDuration)
	require.Len(t, list[0].Exercises, 2)
	assert.Equal(t, "Plank", list[0].Exercises[1].Name)
	assert.True(t, list[1].IsQuickTest())
	assert.Empty(t, list[1].Exercises)
}

func TestFile_LoadYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "presets.yaml", sampleYAML)

	list, err := NewFile(path).Load()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "stretch", list[0].ID)
	assert.Equal(t, 0, list[0].BreakDuration)
	assert.Equal(t, "Arms up", list[0].Exercises[0].Description)
}

func TestFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewFile(filepath.Join(dir, "missing.json")).Load()
	assert.ErrorIs(t, err, os.ErrNotExist)

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"garbage", "{not json", ErrMalformed},
		{"no wrapper", `{"presets": []}`, ErrMalformed},
		{"empty id", `{"pomodoroPresets": [{"name": "x"}]}`, ErrMalformed},
		{"duplicate", `{"pomodoroPresets": [{"id": "a"}, {"id": "a"}]}`, ErrDuplicateID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.name+".json", tt.content)
			_, err := NewFile(path).Load()
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestWriteThenLoad(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"out.json", "out.yml"} {
		path := filepath.Join(dir, "nested", name)
		require.NoError(t, Write(path, Defaults()))

		list, err := NewFile(path).Load()
		require.NoError(t, err, name)
		assert.Equal(t, Defaults(), list, name)
	}
}

func TestDefaults(t *testing.T) {
	list, err := Static(Defaults()).Load()
	require.NoError(t, err)

	ids := make([]string, 0, len(list))
	for _, p := range list {
		ids = append(ids, p.ID)
		_, err := p.Plan()
		assert.NoError(t, err, p.ID)
	}
	assert.Equal(t, []string{"classic_20_5", "express_10_2", "beginner_5_5", QuickTestID}, ids)
}

func TestStatic_Duplicate(t *testing.T) {
	_, err := Static{{ID: "a"}, {ID: "a"}}.Load()
	assert.True(t, errors.Is(err, ErrDuplicateID))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "presets.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return NewStore(database)
}

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	list, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, s.Save(ctx, Defaults(), "builtin"))

	list, err = s.Load()
	require.NoError(t, err)
	require.Len(t, list, 4)
	// Ordered by id.
	assert.Equal(t, "beginner_5_5", list[0].ID)
	assert.Equal(t, QuickTestID, list[3].ID)

	byID := map[string]Preset{}
	for _, p := range list {
		byID[p.ID] = p
	}
	for _, want := range Defaults() {
		got := byID[want.ID]
		assert.Equal(t, want.WorkDuration, got.WorkDuration)
		assert.Equal(t, want.Exercises, got.Exercises, want.ID)
	}

	origin, err := s.Origin(ctx, "classic_20_5")
	require.NoError(t, err)
	assert.Equal(t, "builtin", origin)
}

func TestStore_Upsert(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	p := Preset{ID: "a", Name: "A", WorkDuration: 10, BreakDuration: 5, Cycles: 1,
		Exercises: []workout.Exercise{{Name: "one"}, {Name: "two"}}}
	require.NoError(t, s.Save(ctx, []Preset{p}, "first.json"))

	p.Name = "A2"
	p.Exercises = []workout.Exercise{{Name: "three"}}
	require.NoError(t, s.Save(ctx, []Preset{p}, "second.json"))

	list, err := s.Load()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "A2", list[0].Name)
	assert.Equal(t, []workout.Exercise{{Name: "three"}}, list[0].Exercises)

	origin, err := s.Origin(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "second.json", origin)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Save(ctx, Defaults(), ""))

	require.NoError(t, s.Delete(ctx, "classic_20_5"))
	assert.ErrorIs(t, s.Delete(ctx, "classic_20_5"), ErrNotInStore)

	var n int
	require.NoError(t, s.db.SQL().QueryRow(
		`SELECT COUNT(*) FROM preset_exercises WHERE preset_id = ?`, "classic_20_5").Scan(&n))
	assert.Zero(t, n, "exercises cascade with the preset")

	_, err := s.Origin(ctx, "classic_20_5")
	assert.ErrorIs(t, err, ErrNotInStore)
}

func TestStore_SaveRejectsDuplicates(t *testing.T) {
	s := openTestStore(t)
	err := s.Save(context.Background(), []Preset{{ID: "a"}, {ID: "a"}}, "")
	assert.ErrorIs(t, err, ErrDuplicateID)

	list, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", sampleJSON)

	var calls atomic.Int32
	changed := make(chan struct{}, 4)
	w, err := NewWatcher(path, 20*time.Millisecond, func() {
		calls.Add(1)
		changed <- struct{}{}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Unrelated files are ignored.
	writeFile(t, dir, "other.json", "{}")
	// Several quick writes collapse into one reload.
	for i := 0; i < 3; i++ {
		writeFile(t, dir, "config.json", sampleJSON)
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("no reload after write")
	}
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}
