// Package store loads OpsFlux projects, tasks and ICS feeds and keeps the
// latest derived snapshot (events and roster) for the HTTP layer.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"opsplan/internal/ics"
	appLog "opsplan/internal/log"
	"opsplan/internal/model"
	"opsplan/internal/opsapi"
	"opsplan/internal/planner"
)

// ErrFetchFailed wraps any failure to load backend data. Network, status
// and decoding failures are not distinguished.
var ErrFetchFailed = errors.New("data fetch failed")

// Backend is the subset of the OpsFlux API the store reads.
type Backend interface {
	ListProjects(ctx context.Context, includeArchived bool) ([]opsapi.Project, error)
	ListTasks(ctx context.Context, projectID string) ([]opsapi.Task, error)
}

// FeedFetcher downloads ICS feeds. Failed feeds are reported, not fatal.
type FeedFetcher interface {
	FetchAll(ctx context.Context, feeds []ics.Feed) ([]ics.FetchResult, []error)
}

// Snapshot is one consistent load of source data and what derives from it.
type Snapshot struct {
	Seq       uint64
	FetchedAt time.Time

	Projects []opsapi.Project
	Tasks    []opsapi.Task
	Events   []model.Event
	Roster   []model.User

	// FeedErrors counts feeds that failed during this load.
	FeedErrors int

	byID map[string]int
}

// Lookup finds an event by ID.
func (s *Snapshot) Lookup(id string) (model.Event, bool) {
	if s == nil {
		return model.Event{}, false
	}
	i, ok := s.byID[id]
	if !ok {
		return model.Event{}, false
	}
	return s.Events[i], true
}

// Options configures a Store.
type Options struct {
	Backend Backend

	// Fetcher and Feeds are optional.
	Fetcher FeedFetcher
	Feeds   []ics.Feed

	Location        *time.Location
	Concurrency     int
	IncludeArchived bool

	// PastMonths / FutureMonths bound recurrence expansion around now.
	PastMonths   int
	FutureMonths int

	Now func() time.Time
}

const (
	defaultConcurrency  = 4
	defaultPastMonths   = 6
	defaultFutureMonths = 18
)

// Store holds the newest applied snapshot. Loads are tagged with an
// increasing sequence number; a load that finishes after a newer one was
// applied is discarded.
type Store struct {
	opts Options

	seq   atomic.Uint64
	group singleflight.Group

	mu    sync.RWMutex
	snap  *Snapshot
	stale bool
}

// New creates a Store. Nothing is fetched until the first Get or Refresh.
func New(opts Options) *Store {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.PastMonths <= 0 {
		opts.PastMonths = defaultPastMonths
	}
	if opts.FutureMonths <= 0 {
		opts.FutureMonths = defaultFutureMonths
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{opts: opts}
}

// Current returns the applied snapshot, or nil before the first load.
func (s *Store) Current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Invalidate marks the snapshot stale; the next Get reloads.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}

// Get returns the current snapshot, loading it first when there is none or
// it was invalidated. Concurrent callers share one load.
func (s *Store) Get(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	snap, stale := s.snap, s.stale
	s.mu.RUnlock()
	if snap != nil && !stale {
		return snap, nil
	}

	// The shared load outlives any single caller; each caller still stops
	// waiting when its own ctx ends.
	ch := s.group.DoChan("load", func() (any, error) {
		return s.Refresh(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

// Refresh loads unconditionally and returns the newest applied snapshot.
// Errors wrap ErrFetchFailed; the previous snapshot is kept.
func (s *Store) Refresh(ctx context.Context) (*Snapshot, error) {
	seq := s.seq.Add(1)
	started := time.Now()

	snap, err := s.load(ctx, seq)
	if err != nil {
		appLog.Error("calendar load failed", err, "seq", seq)
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap != nil && s.snap.Seq > seq {
		appLog.Debug("discarding superseded load", "seq", seq, "applied", s.snap.Seq)
		return s.snap, nil
	}
	s.snap = snap
	s.stale = false

	appLog.Info("calendar loaded",
		"seq", seq,
		"projects", len(snap.Projects),
		"tasks", len(snap.Tasks),
		"events", len(snap.Events),
		"feed_errors", snap.FeedErrors,
		"elapsed", time.Since(started).String(),
	)
	return snap, nil
}

func (s *Store) load(ctx context.Context, seq uint64) (*Snapshot, error) {
	now := s.opts.Now().In(s.opts.Location)
	windowStart := planner.AddMonths(now, -s.opts.PastMonths)
	windowEnd := planner.AddMonths(now, s.opts.FutureMonths)

	var (
		projects   []opsapi.Project
		tasks      []opsapi.Task
		feedEvents []model.Event
		feedErrs   int
	)

	// Feed failures never fail the group.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		projects, tasks, err = s.fetchBackend(gctx)
		return err
	})
	g.Go(func() error {
		feedEvents, feedErrs = s.fetchFeeds(gctx, windowStart, windowEnd)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	n := planner.Normalizer{
		Location:    s.opts.Location,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
	}
	events := n.Normalize(projects, tasks)
	for _, e := range feedEvents {
		if !planner.KnownColor(e.Color) {
			e.Color = planner.ColorNeutral
		}
		events = append(events, e)
	}

	snap := &Snapshot{
		Seq:        seq,
		FetchedAt:  now,
		Projects:   projects,
		Tasks:      tasks,
		Events:     events,
		Roster:     planner.Roster(projects),
		FeedErrors: feedErrs,
		byID:       make(map[string]int, len(events)),
	}
	for i, e := range events {
		if _, dup := snap.byID[e.ID]; !dup {
			snap.byID[e.ID] = i
		}
	}
	return snap, nil
}

// fetchBackend lists projects, then their tasks with bounded concurrency.
// Tasks keep project order.
func (s *Store) fetchBackend(ctx context.Context) ([]opsapi.Project, []opsapi.Task, error) {
	projects, err := s.opts.Backend.ListProjects(ctx, s.opts.IncludeArchived)
	if err != nil {
		return nil, nil, fmt.Errorf("list projects: %w", err)
	}

	perProject := make([][]opsapi.Task, len(projects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, p := range projects {
		g.Go(func() error {
			tasks, err := s.opts.Backend.ListTasks(gctx, p.ID)
			if err != nil {
				return fmt.Errorf("list tasks of project %s: %w", p.ID, err)
			}
			perProject[i] = tasks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var tasks []opsapi.Task
	for _, ts := range perProject {
		tasks = append(tasks, ts...)
	}
	return projects, tasks, nil
}

func (s *Store) fetchFeeds(ctx context.Context, from, to time.Time) ([]model.Event, int) {
	if s.opts.Fetcher == nil || len(s.opts.Feeds) == 0 {
		return nil, 0
	}

	results, errs := s.opts.Fetcher.FetchAll(ctx, s.opts.Feeds)
	failed := len(errs)

	var parsed []ics.ParsedEvent
	for _, res := range results {
		evs, err := ics.Parse(res.Feed, res.Body)
		if err != nil {
			failed++
			continue
		}
		parsed = append(parsed, evs...)
	}

	res, err := ics.Expand(parsed, ics.ExpandConfig{
		DisplayLocation: s.opts.Location,
		RangeStart:      from,
		RangeEnd:        to,
	})
	if err != nil {
		appLog.Error("feed expansion failed", err)
		return nil, failed + 1
	}
	return res.Events, failed
}
