package engine

import (
	"testing"
	"time"

	"github.com/coffersTech/actionlog/internal/logging"
	"github.com/coffersTech/actionlog/internal/model"
)

func TestIndex_RebuildOrdersNewestFirst(t *testing.T) {
	s := newStore(t)
	writeEntries(t, s, "a",
		action("2025-01-10T00:00:00Z", "a1"),
		action("garbage", "a2"),
		action("2025-01-12T00:00:00Z", "a3"),
	)
	writeEntries(t, s, "b",
		action("2025-01-11T00:00:00Z", "b1"),
		action("2025-01-12T00:00:00Z", "b2"),
	)
	writeRaw(t, s, "c.json", "{broken")

	ix := NewIndex(logging.Nop())
	if err := ix.Rebuild(s); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	var got []string
	for _, e := range ix.All() {
		got = append(got, e.UserName)
	}
	// a3 and b2 share a timestamp; enumeration order (a before b) is kept.
	want := []string{"a3", "b2", "b1", "a1", "a2"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, got)
		}
	}
	if st := ix.Stats(); st.Files != 2 {
		t.Errorf("Expected 2 readable files, got %d", st.Files)
	}
}

func TestIndex_OnlyChangesOnRebuild(t *testing.T) {
	s := newStore(t)
	writeEntries(t, s, "a", action("2025-01-10T00:00:00Z", "u"))

	ix := NewIndex(logging.Nop())
	if err := ix.Rebuild(s); err != nil {
		t.Fatal(err)
	}
	writeEntries(t, s, "b", action("2025-01-11T00:00:00Z", "u"))

	if ix.Len() != 1 {
		t.Errorf("Expected stale snapshot of 1 entry, got %d", ix.Len())
	}
	if err := ix.Rebuild(s); err != nil {
		t.Fatal(err)
	}
	if ix.Len() != 2 {
		t.Errorf("Expected 2 entries after rebuild, got %d", ix.Len())
	}
}

func TestIndex_AllReturnsCopy(t *testing.T) {
	s := newStore(t)
	writeEntries(t, s, "a", action("2025-01-10T00:00:00Z", "u"))

	ix := NewIndex(logging.Nop())
	_ = ix.Rebuild(s)

	all := ix.All()
	all[0].UserName = "mutated"
	if ix.All()[0].UserName != "u" {
		t.Error("All must not expose the internal slice")
	}
}

func TestIndex_Search(t *testing.T) {
	s := newStore(t)
	login := action("2025-01-10T08:00:00Z", "alice")
	login.Event = "User Login"
	failed := action("2025-01-11T08:00:00Z", "bob")
	failed.Event = "payment"
	failed.Level = model.LevelError
	other := action("2025-01-12T08:00:00Z", "carol")
	other.CompanyID = "globex"
	writeEntries(t, s, "stream", login, failed, other)

	ix := NewIndex(logging.Nop())
	if err := ix.Rebuild(s); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		filter Filter
		limit  int
		want   []string
	}{
		{"all", Filter{}, 0, []string{"carol", "bob", "alice"}},
		{"limit", Filter{}, 2, []string{"carol", "bob"}},
		{"level", Filter{Level: model.LevelError}, 0, []string{"bob"}},
		{"user", Filter{UserName: "alice"}, 0, []string{"alice"}},
		{"company", Filter{CompanyID: "globex"}, 0, []string{"carol"}},
		{"event substring", Filter{Event: "login"}, 0, []string{"alice"}},
		{"since", Filter{Since: time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC)}, 0, []string{"carol", "bob"}},
		{"until", Filter{Until: time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC)}, 0, []string{"alice"}},
		{"no match", Filter{UserName: "nobody"}, 0, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ix.Search(tt.filter, tt.limit)
			if got == nil {
				t.Fatal("Search must return a non-nil slice")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %d results, got %d", len(tt.want), len(got))
			}
			for i, e := range got {
				if e.UserName != tt.want[i] {
					t.Errorf("result %d: expected %s, got %s", i, tt.want[i], e.UserName)
				}
			}
		})
	}
}

func TestIndex_Stats(t *testing.T) {
	s := newStore(t)
	e1 := action("2025-01-10T00:00:00Z", "alice")
	e2 := action("2025-01-12T00:00:00Z", "alice")
	e2.Level = model.LevelWarning
	e3 := action("not a time", "bob")
	writeEntries(t, s, "x", e1, e2, e3)

	ix := NewIndex(logging.Nop())
	_ = ix.Rebuild(s)
	st := ix.Stats()

	if st.TotalEntries != 3 || st.Users != 2 {
		t.Errorf("Expected 3 entries and 2 users, got %d and %d", st.TotalEntries, st.Users)
	}
	if st.LevelDist["info"] != 2 || st.LevelDist["warning"] != 1 {
		t.Errorf("unexpected level distribution: %v", st.LevelDist)
	}
	if st.Newest != "2025-01-12T00:00:00Z" || st.Oldest != "2025-01-10T00:00:00Z" {
		t.Errorf("unexpected range: %s .. %s", st.Oldest, st.Newest)
	}
}

// gatedSource lists the files, then waits for release before reading them.
type gatedSource struct {
	Source
	listed  chan struct{}
	release chan struct{}
}

func (g *gatedSource) List() ([]string, error) {
	names, err := g.Source.List()
	close(g.listed)
	<-g.release
	return names, err
}

func TestIndex_OverlappingRebuildsKeepNewest(t *testing.T) {
	s := newStore(t)
	writeEntries(t, s, "a", action("2025-01-10T00:00:00Z", "a"))

	ix := NewIndex(logging.Nop())
	slow := &gatedSource{Source: s, listed: make(chan struct{}), release: make(chan struct{})}

	slowDone := make(chan error, 1)
	go func() { slowDone <- ix.Rebuild(slow) }()
	<-slow.listed

	writeEntries(t, s, "b", action("2025-01-11T00:00:00Z", "b"))
	fastDone := make(chan error, 1)
	go func() { fastDone <- ix.Rebuild(s) }()

	// give the later rebuild the chance to finish first if it is not held back
	time.Sleep(50 * time.Millisecond)
	close(slow.release)

	if err := <-slowDone; err != nil {
		t.Fatal(err)
	}
	if err := <-fastDone; err != nil {
		t.Fatal(err)
	}
	if ix.Len() != 2 {
		t.Errorf("Expected snapshot of both files, got %d entries", ix.Len())
	}
}
