package store

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"opsplan/internal/ics"
	"opsplan/internal/model"
	"opsplan/internal/opsapi"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeBackend struct {
	mu       sync.Mutex
	projects []opsapi.Project
	tasks    map[string][]opsapi.Task
	taskErr  map[string]error

	projectCalls atomic.Int32
	inFlight     atomic.Int32
	maxInFlight  atomic.Int32

	// hook runs at the start of ListProjects with the 1-based call number.
	hook func(call int32)
}

func (f *fakeBackend) ListProjects(ctx context.Context, includeArchived bool) ([]opsapi.Project, error) {
	n := f.projectCalls.Add(1)
	if f.hook != nil {
		f.hook(n)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]opsapi.Project, 0, len(f.projects))
	for _, p := range f.projects {
		if p.Archived && !includeArchived {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeBackend) ListTasks(ctx context.Context, projectID string) ([]opsapi.Task, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		prev := f.maxInFlight.Load()
		if cur <= prev || f.maxInFlight.CompareAndSwap(prev, cur) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.taskErr[projectID]; err != nil {
		return nil, err
	}
	return f.tasks[projectID], nil
}

func (f *fakeBackend) setProjects(ps ...opsapi.Project) {
	f.mu.Lock()
	f.projects = ps
	f.mu.Unlock()
}

func fixedNow() time.Time {
	return time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)
}

func newBackend() *fakeBackend {
	return &fakeBackend{
		projects: []opsapi.Project{
			{ID: "P1", Name: "Forage", StartDate: "2025-03-01", EndDate: "2025-03-31",
				TeamMembers: []opsapi.Member{{ID: "u1", Name: "Alice Martin"}}},
			{ID: "P2", Name: "Audit", Manager: &opsapi.Member{ID: "u1", Name: "Alice Martin"}},
			{ID: "P3", Name: "Ancien", Archived: true},
		},
		tasks: map[string][]opsapi.Task{
			"P1": {{ID: "T1", Title: "Inspection", DueDate: "2025-03-10", Priority: "critical", ProjectID: "P1"}},
			"P2": {{ID: "T2", Title: "Rapport", DueDate: "2025-03-14", ProjectID: "P2"}, {ID: "T3", Title: "Sans date", ProjectID: "P2"}},
		},
	}
}

func TestGetLoadsAndCaches(t *testing.T) {
	b := newBackend()
	s := New(Options{Backend: b, Location: time.UTC, Now: fixedNow})

	snap, err := s.Get(context.Background())
	require.NoError(t, err)

	assert.Len(t, snap.Projects, 2, "archived projects are filtered")
	require.Len(t, snap.Tasks, 3)
	assert.Equal(t, "T1", snap.Tasks[0].ID, "tasks keep project order")
	assert.Len(t, snap.Events, 4, "two dated tasks plus start and end of P1")
	assert.Len(t, snap.Roster, 1)

	e, ok := snap.Lookup("T1")
	require.True(t, ok)
	assert.Equal(t, "red", e.Color)
	_, ok = snap.Lookup("T3")
	assert.False(t, ok)

	again, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, snap, again)
	assert.Equal(t, int32(1), b.projectCalls.Load())
}

func TestInvalidateRefetches(t *testing.T) {
	b := newBackend()
	s := New(Options{Backend: b, Location: time.UTC, Now: fixedNow})

	first, err := s.Get(context.Background())
	require.NoError(t, err)

	b.setProjects(opsapi.Project{ID: "P9", Name: "Nouveau"})
	s.Invalidate()

	second, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Greater(t, second.Seq, first.Seq)
	require.Len(t, second.Projects, 1)
	assert.Equal(t, "P9", second.Projects[0].ID)
}

func TestFetchFailureIsWrapped(t *testing.T) {
	b := newBackend()
	b.taskErr = map[string]error{"P2": &opsapi.StatusError{Code: http.StatusBadGateway}}
	s := New(Options{Backend: b, Location: time.UTC, Now: fixedNow})

	_, err := s.Get(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
	var se *opsapi.StatusError
	assert.True(t, errors.As(err, &se))
	assert.Nil(t, s.Current(), "no partial calendar")
}

func TestFailedRefreshKeepsPreviousSnapshot(t *testing.T) {
	b := newBackend()
	s := New(Options{Backend: b, Location: time.UTC, Now: fixedNow})
	first, err := s.Refresh(context.Background())
	require.NoError(t, err)

	b.mu.Lock()
	b.taskErr = map[string]error{"P1": errors.New("connection reset")}
	b.mu.Unlock()

	_, err = s.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Same(t, first, s.Current())
}

func TestTaskFanOutIsBounded(t *testing.T) {
	b := &fakeBackend{tasks: map[string][]opsapi.Task{}}
	var ps []opsapi.Project
	for i := 0; i < 12; i++ {
		ps = append(ps, opsapi.Project{ID: string(rune('A' + i))})
	}
	b.projects = ps

	s := New(Options{Backend: b, Location: time.UTC, Now: fixedNow, Concurrency: 3})
	_, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, b.maxInFlight.Load(), int32(3))
	assert.Positive(t, b.maxInFlight.Load())
}

func TestSupersededLoadIsDiscarded(t *testing.T) {
	b := newBackend()
	entered := make(chan struct{})
	release := make(chan struct{})
	b.hook = func(call int32) {
		if call == 1 {
			close(entered)
			<-release
		}
	}
	s := New(Options{Backend: b, Location: time.UTC, Now: fixedNow})

	var wg sync.WaitGroup
	var slow *Snapshot
	wg.Add(1)
	go func() {
		defer wg.Done()
		slow, _ = s.Refresh(context.Background())
	}()
	<-entered

	b.setProjects(opsapi.Project{ID: "P9"})
	fast, err := s.Refresh(context.Background())
	require.NoError(t, err)
	close(release)
	wg.Wait()

	assert.Same(t, fast, s.Current())
	assert.Same(t, fast, slow)
	assert.Equal(t, uint64(2), s.Current().Seq)
}

func TestCancelledCallerDoesNotFailSharedLoad(t *testing.T) {
	b := newBackend()
	entered := make(chan struct{})
	release := make(chan struct{})
	b.hook = func(call int32) {
		if call == 1 {
			close(entered)
			<-release
		}
	}
	s := New(Options{Backend: b, Location: time.UTC, Now: fixedNow})

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := s.Get(ctx)
		firstErr <- err
	}()
	<-entered

	type result struct {
		snap *Snapshot
		err  error
	}
	second := make(chan result, 1)
	go func() {
		snap, err := s.Get(context.Background())
		second <- result{snap, err}
	}()

	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	time.Sleep(10 * time.Millisecond)
	close(release)

	r := <-second
	require.NoError(t, r.err)
	require.NotNil(t, r.snap)
	assert.Len(t, r.snap.Projects, 2)
	assert.Same(t, r.snap, s.Current())
	assert.Equal(t, int32(1), b.projectCalls.Load(), "both callers share one load")
}

func TestFeedEventsAreMerged(t *testing.T) {
	const body = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\n" +
		"BEGIN:VEVENT\r\nUID:holiday-1\r\nDTSTAMP:20250101T000000Z\r\n" +
		"DTSTART;VALUE=DATE:20250501\r\nDTEND;VALUE=DATE:20250502\r\nSUMMARY:Fête du travail\r\n" +
		"END:VEVENT\r\nEND:VCALENDAR\r\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken.ics" {
			http.Error(w, "gone", http.StatusGone)
			return
		}
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	s := New(Options{
		Backend:  &fakeBackend{},
		Fetcher:  ics.NewFetcher(t.TempDir(), 5*time.Second),
		Location: time.UTC,
		Now:      fixedNow,
		Feeds: []ics.Feed{
			{ID: "fr", URL: srv.URL + "/fr.ics", Color: "#123456"},
			{ID: "broken", URL: srv.URL + "/broken.ics"},
		},
	})

	snap, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, snap.FeedErrors)
	require.Len(t, snap.Events, 1)

	e := snap.Events[0]
	assert.Equal(t, model.EventEvent, e.Type)
	assert.Equal(t, "fr", e.Source)
	assert.Equal(t, "gray", e.Color, "unrenderable feed colors fall back to gray")
	assert.True(t, e.AllDay)
	assert.Equal(t, "2025-05-01", e.StartKey(time.UTC))
	assert.Equal(t, "2025-05-01", e.EndKey(time.UTC))
}
