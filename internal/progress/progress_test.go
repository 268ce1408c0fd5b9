package progress

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xsslab/xsslab/internal/config"
	"github.com/xsslab/xsslab/internal/logger"
)

func TestMemoryBackendExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemoryBackend()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, m.Set(ctx, "forever", []byte("x"), 0))

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(2 * time.Minute)
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	ok, err := m.Exists(ctx, "forever")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, m.Delete(ctx, "forever"))
	ok, _ = m.Exists(ctx, "forever")
	assert.False(t, ok)
}

func TestMemoryBackendCopiesValues(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()
	buf := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", buf, 0))
	buf[0] = 'z'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestNewBackendFallsBackToMemory(t *testing.T) {
	cfg := config.Default()
	cfg.Progress.Backend = "redis"
	cfg.Progress.RedisAddr = "127.0.0.1:1"

	b := NewBackend(context.Background(), cfg, logger.Nop())
	assert.IsType(t, &MemoryBackend{}, b)

	cfg.Progress.Backend = "memory"
	assert.IsType(t, &MemoryBackend{}, NewBackend(context.Background(), cfg, logger.Nop()))

	cfg.Progress.Backend = "file"
	cfg.Progress.Path = filepath.Join(t.TempDir(), "progress.json")
	assert.IsType(t, &FileBackend{}, NewBackend(context.Background(), cfg, logger.Nop()))
}

func TestFileBackendPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "progress.json")

	f := NewFileBackend(path)
	_, err := f.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, f.Set(ctx, "k", []byte(`{"a":1}`), 0))
	require.NoError(t, f.Set(ctx, "short", []byte("x"), time.Minute))

	reopened := NewFileBackend(path)
	got, err := reopened.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))

	reopened.now = func() time.Time { return time.Now().Add(time.Hour) }
	ok, err := reopened.Exists(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, reopened.Delete(ctx, "k"))
	ok, _ = f.Exists(ctx, "k")
	assert.False(t, ok)
}

func TestFileBackendCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileBackend(path).Get(context.Background(), "k")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestTrackerWithFileBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "progress.json")

	_, err := NewTracker(NewFileBackend(path), logger.Nop(), 0).CompleteLesson(ctx, "basics", "intro")
	require.NoError(t, err)

	doc, err := NewTracker(NewFileBackend(path), logger.Nop(), 0).Load(ctx)
	require.NoError(t, err)
	assert.Contains(t, doc.Lessons, "intro")
}

func newTracker() (*Tracker, *MemoryBackend) {
	b := NewMemoryBackend()
	return NewTracker(b, logger.Nop(), 0), b
}

func TestTrackerLoadEmpty(t *testing.T) {
	tr, _ := newTracker()
	doc, err := tr.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Version, doc.Version)
	assert.Empty(t, doc.Lessons)
	assert.NotNil(t, doc.Challenges)
}

func TestTrackerLessonsAndPaths(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTracker()

	_, err := tr.CompleteLesson(ctx, "basics", "what-is-xss")
	require.NoError(t, err)
	_, err = tr.CompleteLesson(ctx, "basics", "what-is-xss")
	require.NoError(t, err)
	doc, err := tr.CompleteLesson(ctx, "basics", "reflected")
	require.NoError(t, err)

	assert.Equal(t, []string{"what-is-xss", "reflected"}, doc.Paths["basics"].CompletedLessons)
	assert.Equal(t, 2, doc.Stats.LessonsCompleted)
	assert.False(t, doc.Paths["basics"].Completed)

	doc, err = tr.CompletePath(ctx, "basics")
	require.NoError(t, err)
	assert.True(t, doc.Paths["basics"].Completed)

	loaded, err := tr.Load(ctx)
	require.NoError(t, err)
	assert.True(t, loaded.Paths["basics"].Completed)
	assert.Equal(t, "basics", loaded.Lessons["reflected"].Path)

	_, err = tr.CompleteLesson(ctx, "basics", "")
	assert.Error(t, err)
}

func TestTrackerChallenges(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTracker()

	_, err := tr.RecordAttempt(ctx, "c1")
	require.NoError(t, err)
	_, err = tr.RecordAttempt(ctx, "c1")
	require.NoError(t, err)
	doc, err := tr.CompleteChallenge(ctx, "c1", "<svg onload=alert(1)>")
	require.NoError(t, err)

	c := doc.Challenges["c1"]
	assert.Equal(t, 3, c.Attempts)
	assert.True(t, c.Completed)
	assert.Equal(t, "<svg onload=alert(1)>", c.Solution)

	doc, err = tr.CompleteChallenge(ctx, "c1", "other")
	require.NoError(t, err)
	assert.Equal(t, "<svg onload=alert(1)>", doc.Challenges["c1"].Solution)
	assert.Equal(t, 1, doc.Stats.ChallengesCompleted)
	assert.Equal(t, 4, doc.Stats.TotalAttempts)
	assert.Equal(t, []string{"c1"}, doc.CompletedChallenges())
	assert.False(t, doc.Stats.LastActivity.IsZero())
}

func TestTrackerDiscardsOtherVersions(t *testing.T) {
	ctx := context.Background()
	tr, b := newTracker()

	require.NoError(t, b.Set(ctx, Key, []byte(`{"version":99,"lessons":{"x":{}}}`), 0))
	doc, err := tr.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, doc.Lessons)

	require.NoError(t, b.Set(ctx, Key, []byte(`not json`), 0))
	doc, err = tr.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Version, doc.Version)
}

func TestTrackerReset(t *testing.T) {
	ctx := context.Background()
	tr, b := newTracker()

	_, err := tr.CompleteLesson(ctx, "", "intro")
	require.NoError(t, err)
	ok, _ := b.Exists(ctx, Key)
	require.True(t, ok)

	require.NoError(t, tr.Reset(ctx))
	doc, err := tr.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, doc.Lessons)
}

type failingBackend struct{ Backend }

func (failingBackend) Exists(context.Context, string) (bool, error) {
	return true, nil
}

func (failingBackend) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

type unreachableBackend struct{ Backend }

func (unreachableBackend) Exists(context.Context, string) (bool, error) {
	return false, errors.New("i/o timeout")
}

func TestTrackerPropagatesBackendErrors(t *testing.T) {
	tr := NewTracker(failingBackend{}, logger.Nop(), 0)
	_, err := tr.CompleteLesson(context.Background(), "", "intro")
	assert.ErrorContains(t, err, "connection refused")

	_, err = NewTracker(unreachableBackend{}, logger.Nop(), 0).Load(context.Background())
	assert.ErrorContains(t, err, "i/o timeout")
}

func TestTrackerDropsNullEntries(t *testing.T) {
	ctx := context.Background()
	tr, b := newTracker()

	stored := `{"version":1,"paths":{"p":null},"lessons":{"l":null},"challenges":{"x":null,"y":{"attempts":2}}}`
	require.NoError(t, b.Set(ctx, Key, []byte(stored), 0))

	doc, err := tr.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, doc.Paths)
	assert.Empty(t, doc.Lessons)
	assert.NotContains(t, doc.Challenges, "x")
	assert.Equal(t, 2, doc.Challenges["y"].Attempts)

	doc, err = tr.RecordAttempt(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Challenges["x"].Attempts)

	doc, err = tr.CompleteChallenge(ctx, "x", "<svg onload=alert(1)>")
	require.NoError(t, err)
	assert.True(t, doc.Challenges["x"].Completed)
	assert.Equal(t, 4, doc.Stats.TotalAttempts)
}
