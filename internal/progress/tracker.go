// Package progress persists a learner's lesson and challenge progress as
// one versioned document under a fixed key.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xsslab/xsslab/internal/logger"
)

const (
	// Key is the storage key of the progress document.
	Key = "xsslab:progress:v1"
	// Version of the document layout. Stored documents with another
	// version are discarded.
	Version = 1
)

type PathProgress struct {
	StartedAt        time.Time `json:"startedAt"`
	CompletedLessons []string  `json:"completedLessons"`
	Completed        bool      `json:"completed"`
	CompletedAt      time.Time `json:"completedAt"`
}

type LessonProgress struct {
	Path        string    `json:"path,omitempty"`
	CompletedAt time.Time `json:"completedAt"`
}

type ChallengeProgress struct {
	Attempts    int       `json:"attempts"`
	Completed   bool      `json:"completed"`
	CompletedAt time.Time `json:"completedAt"`
	Solution    string    `json:"solution,omitempty"`
}

type Stats struct {
	LessonsCompleted    int       `json:"lessonsCompleted"`
	ChallengesCompleted int       `json:"challengesCompleted"`
	TotalAttempts       int       `json:"totalAttempts"`
	LastActivity        time.Time `json:"lastActivity"`
}

// Document is the whole persisted progress state.
type Document struct {
	Version    int                           `json:"version"`
	Paths      map[string]*PathProgress      `json:"paths"`
	Lessons    map[string]*LessonProgress    `json:"lessons"`
	Challenges map[string]*ChallengeProgress `json:"challenges"`
	Stats      Stats                         `json:"stats"`
}

// NewDocument returns an empty document at the current version.
func NewDocument() *Document {
	return &Document{
		Version:    Version,
		Paths:      map[string]*PathProgress{},
		Lessons:    map[string]*LessonProgress{},
		Challenges: map[string]*ChallengeProgress{},
	}
}

// CompletedChallenges returns the ids of solved challenges, sorted.
func (d *Document) CompletedChallenges() []string {
	var ids []string
	for id, c := range d.Challenges {
		if c.Completed {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (d *Document) recount() {
	d.Stats.LessonsCompleted = len(d.Lessons)
	d.Stats.ChallengesCompleted = 0
	d.Stats.TotalAttempts = 0
	for _, c := range d.Challenges {
		if c.Completed {
			d.Stats.ChallengesCompleted++
		}
		d.Stats.TotalAttempts += c.Attempts
	}
}

// Tracker reads and rewrites the progress document as a whole.
type Tracker struct {
	backend Backend
	log     logger.Logger
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
}

func NewTracker(backend Backend, log logger.Logger, ttl time.Duration) *Tracker {
	return &Tracker{
		backend: backend,
		log:     log,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Load returns the stored document, or a fresh one when nothing usable is stored.
func (t *Tracker) Load(ctx context.Context) (*Document, error) {
	ok, err := t.backend.Exists(ctx, Key)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	if !ok {
		return NewDocument(), nil
	}

	data, err := t.backend.Get(ctx, Key)
	if errors.Is(err, ErrCacheMiss) {
		return NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}

	doc := &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		t.log.Warn("Discarding unreadable progress document", "error", err)
		return NewDocument(), nil
	}
	if doc.Version != Version {
		t.log.Warn("Discarding progress document with unknown version", "version", doc.Version)
		return NewDocument(), nil
	}
	if doc.Paths == nil {
		doc.Paths = map[string]*PathProgress{}
	}
	if doc.Lessons == nil {
		doc.Lessons = map[string]*LessonProgress{}
	}
	if doc.Challenges == nil {
		doc.Challenges = map[string]*ChallengeProgress{}
	}
	dropNil(doc.Paths)
	dropNil(doc.Lessons)
	dropNil(doc.Challenges)
	return doc, nil
}

// Save writes doc under Key.
func (t *Tracker) Save(ctx context.Context, doc *Document) error {
	doc.Version = Version
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	if err := t.backend.Set(ctx, Key, data, t.ttl); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

func (t *Tracker) update(ctx context.Context, fn func(doc *Document, now time.Time)) (*Document, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	doc, err := t.Load(ctx)
	if err != nil {
		return nil, err
	}
	now := t.now().UTC()
	fn(doc, now)
	doc.recount()
	doc.Stats.LastActivity = now
	if err := t.Save(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// CompleteLesson marks lessonID done, optionally within learning path pathID.
func (t *Tracker) CompleteLesson(ctx context.Context, pathID, lessonID string) (*Document, error) {
	if lessonID == "" {
		return nil, errors.New("lesson id is required")
	}
	return t.update(ctx, func(doc *Document, now time.Time) {
		if _, done := doc.Lessons[lessonID]; !done {
			doc.Lessons[lessonID] = &LessonProgress{Path: pathID, CompletedAt: now}
		}
		if pathID == "" {
			return
		}
		p, ok := doc.Paths[pathID]
		if !ok {
			p = &PathProgress{StartedAt: now}
			doc.Paths[pathID] = p
		}
		for _, l := range p.CompletedLessons {
			if l == lessonID {
				return
			}
		}
		p.CompletedLessons = append(p.CompletedLessons, lessonID)
	})
}

// CompletePath marks a learning path finished.
func (t *Tracker) CompletePath(ctx context.Context, pathID string) (*Document, error) {
	if pathID == "" {
		return nil, errors.New("path id is required")
	}
	return t.update(ctx, func(doc *Document, now time.Time) {
		p, ok := doc.Paths[pathID]
		if !ok {
			p = &PathProgress{StartedAt: now}
			doc.Paths[pathID] = p
		}
		if !p.Completed {
			p.Completed = true
			p.CompletedAt = now
		}
	})
}

// RecordAttempt counts one attempt at a challenge.
func (t *Tracker) RecordAttempt(ctx context.Context, challengeID string) (*Document, error) {
	if challengeID == "" {
		return nil, errors.New("challenge id is required")
	}
	return t.update(ctx, func(doc *Document, now time.Time) {
		challenge(doc, challengeID).Attempts++
	})
}

// CompleteChallenge records a successful attempt and the payload that solved it.
func (t *Tracker) CompleteChallenge(ctx context.Context, challengeID, solution string) (*Document, error) {
	if challengeID == "" {
		return nil, errors.New("challenge id is required")
	}
	return t.update(ctx, func(doc *Document, now time.Time) {
		c := challenge(doc, challengeID)
		c.Attempts++
		if c.Completed {
			return
		}
		c.Completed = true
		c.CompletedAt = now
		c.Solution = solution
	})
}

// Reset deletes the stored document.
func (t *Tracker) Reset(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.backend.Delete(ctx, Key); err != nil {
		return fmt.Errorf("reset progress: %w", err)
	}
	t.log.Info("Progress reset")
	return nil
}

// dropNil removes entries stored as JSON null.
func dropNil[V any](m map[string]*V) {
	for k, v := range m {
		if v == nil {
			delete(m, k)
		}
	}
}

func challenge(doc *Document, id string) *ChallengeProgress {
	c, ok := doc.Challenges[id]
	if !ok {
		c = &ChallengeProgress{}
		doc.Challenges[id] = c
	}
	return c
}
