package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsplan/internal/model"
)

const holidaysICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:paques-2025\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"DTSTART;VALUE=DATE:20250421\r\n" +
	"DTEND;VALUE=DATE:20250422\r\n" +
	"SUMMARY:Lundi de Pâques\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:standup\r\n" +
	"DTSTAMP:20250101T000000Z\r\n" +
	"DTSTART:20250303T080000Z\r\n" +
	"DTEND:20250303T081500Z\r\n" +
	"RRULE:FREQ=DAILY;COUNT=5\r\n" +
	"EXDATE:20250305T080000Z\r\n" +
	"SUMMARY:Point sécurité\r\n" +
	"LOCATION:Base vie\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

var feed = Feed{ID: "fr", Name: "Jours fériés", URL: "https://calendar.example.com/fr.ics", Color: "gray"}

func TestParseAndExpand(t *testing.T) {
	parsed, err := Parse(feed, []byte(holidaysICS))
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.True(t, parsed[0].AllDay)
	assert.Equal(t, "FREQ=DAILY;COUNT=5", parsed[1].RawRRule)
	require.Len(t, parsed[1].ExDates, 1)

	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	res, err := Expand(parsed, ExpandConfig{
		DisplayLocation: paris,
		RangeStart:      time.Date(2025, 3, 1, 0, 0, 0, 0, paris),
		RangeEnd:        time.Date(2025, 4, 30, 0, 0, 0, 0, paris),
	})
	require.NoError(t, err)

	var holiday []model.Event
	var standups []model.Event
	for _, e := range res.Events {
		if strings.HasPrefix(e.ID, "fr:paques") {
			holiday = append(holiday, e)
		} else {
			standups = append(standups, e)
		}
	}

	require.Len(t, holiday, 1)
	assert.Equal(t, "2025-04-21", holiday[0].StartKey(paris))
	assert.Equal(t, "2025-04-21", holiday[0].EndKey(paris))
	assert.Equal(t, model.EventEvent, holiday[0].Type)
	assert.Equal(t, "gray", holiday[0].Color)
	assert.Equal(t, "fr", holiday[0].Source)

	// Five daily occurrences minus one EXDATE.
	require.Len(t, standups, 4)
	assert.Equal(t, "Base vie", standups[0].Description)
	assert.Equal(t, 9, standups[0].Start.Hour(), "08:00Z is 09:00 in Paris in March")
}

func TestExpandRejectsInvertedRange(t *testing.T) {
	_, err := Expand(nil, ExpandConfig{
		RangeStart: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.Error(t, err)
}

func TestOccurrencesCap(t *testing.T) {
	start := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	times, capped, err := Occurrences("FREQ=DAILY", start, nil, start, start.AddDate(0, 1, 0), 10)
	require.NoError(t, err)
	assert.True(t, capped)
	assert.Len(t, times, 10)

	_, _, err = Occurrences("FREQ=SOMETIMES", start, nil, start, start, 0)
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	events := []model.Event{
		{ID: "T1", Title: "Rapport HSE", Start: day, End: day, AllDay: true, Color: "red", Type: model.EventDeadline, TaskID: "T1"},
		{ID: "bad", Title: "cassé", Invalid: true},
	}

	out := Export(events, ExportOptions{
		Name: "OpsFlux",
		Now:  day,
		Link: func(e model.Event) string { return "https://ops.example.com/projects/tasks/" + e.TaskID },
	})

	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "UID:T1")
	assert.Contains(t, out, "SUMMARY:Rapport HSE")
	assert.Contains(t, out, "20250310")
	assert.Contains(t, out, "20250311")
	assert.Contains(t, out, "CATEGORIES:deadline")
	assert.Contains(t, out, "https://ops.example.com/projects/tasks/T1")
	assert.NotContains(t, out, "UID:bad")
}

func TestFetcherUsesETagCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(holidaysICS))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), time.Second)
	fd := Feed{ID: "fr", URL: srv.URL + "/fr.ics"}

	first, err := f.FetchOne(context.Background(), fd)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := f.FetchOne(context.Background(), fd)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Body, second.Body)
	assert.EqualValues(t, 2, hits.Load())
}

func TestFetchAllReportsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), time.Second)
	results, errs := f.FetchAll(context.Background(), []Feed{{ID: "x", URL: srv.URL}, {ID: "empty"}})
	assert.Empty(t, results)
	assert.Len(t, errs, 2)
}

func TestFetcherRejectsOversizedFeed(t *testing.T) {
	prev := maxFeedBytes
	maxFeedBytes = 64
	t.Cleanup(func() { maxFeedBytes = prev })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(holidaysICS))
	}))
	defer srv.Close()

	require.Greater(t, len(holidaysICS), maxFeedBytes)
	f := NewFetcher(t.TempDir(), time.Second)
	_, err := f.FetchOne(context.Background(), Feed{ID: "fr", URL: srv.URL + "/fr.ics"})
	assert.ErrorContains(t, err, "exceeds 64 bytes")
}
