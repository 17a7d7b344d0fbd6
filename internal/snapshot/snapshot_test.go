package snapshot

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/Chardonneaur/VisitorExclusion/internal/rules"
)

func rule(id int64, enabled bool, value string) rules.Rule {
	return rules.Rule{
		ID:      id,
		Name:    "rule",
		Enabled: enabled,
		Conditions: []rules.Condition{
			{Field: rules.FieldUserAgent, Operator: rules.OpContains, Value: value},
		},
	}
}

func TestBuild_Empty(t *testing.T) {
	snap := Build(nil)

	if snap == nil {
		t.Fatal("Build returned nil")
	}
	if len(snap.Rules) != 0 {
		t.Errorf("Expected 0 rules, got %d", len(snap.Rules))
	}
	if snap.Rules == nil {
		t.Error("Expected empty, non-nil rule list")
	}
	if snap.ETag == "" {
		t.Error("Expected non-empty ETag")
	}
}

func TestBuild_FiltersAndOrders(t *testing.T) {
	snap := Build([]rules.Rule{
		rule(5, true, "e"),
		rule(2, false, "b"),
		rule(1, true, "a"),
		rule(3, true, "c"),
	})

	if len(snap.Rules) != 3 {
		t.Fatalf("Expected 3 enabled rules, got %d", len(snap.Rules))
	}
	for i, want := range []int64{1, 3, 5} {
		if snap.Rules[i].ID != want {
			t.Errorf("Rules[%d].ID = %d, want %d", i, snap.Rules[i].ID, want)
		}
	}
}

func TestBuild_CopiesConditions(t *testing.T) {
	in := []rules.Rule{rule(1, true, "bot")}
	snap := Build(in)

	in[0].Conditions[0].Value = "changed"
	if snap.Rules[0].Conditions[0].Value != "bot" {
		t.Errorf("snapshot shares condition storage with its input")
	}
}

func TestBuild_ETags(t *testing.T) {
	base := []rules.Rule{rule(1, true, "bot"), rule(2, true, "spider")}

	if Build(base).ETag != Build(base).ETag {
		t.Error("Expected deterministic ETags")
	}

	reordered := []rules.Rule{base[1], base[0]}
	if Build(base).ETag != Build(reordered).ETag {
		t.Error("Expected input order not to affect the ETag")
	}

	changed := []rules.Rule{rule(1, true, "bot"), rule(2, true, "crawler")}
	if Build(base).ETag == Build(changed).ETag {
		t.Error("Expected different ETags for different rules")
	}

	withDisabled := append([]rules.Rule{rule(9, false, "x")}, base...)
	if Build(base).ETag != Build(withDisabled).ETag {
		t.Error("Expected disabled rules not to affect the ETag")
	}
}

func TestETagFormat(t *testing.T) {
	snap := Build([]rules.Rule{rule(1, true, "bot")})

	if len(snap.ETag) < 4 || snap.ETag[:3] != `W/"` {
		t.Errorf("Expected ETag to start with 'W/\"', got %s", snap.ETag)
	}
	if snap.ETag[len(snap.ETag)-1] != '"' {
		t.Errorf("Expected ETag to end with '\"', got %s", snap.ETag)
	}
}

func TestHolder_LoadAndUpdate(t *testing.T) {
	h := NewHolder()

	initial := h.Load()
	if initial == nil || len(initial.Rules) != 0 {
		t.Fatalf("Expected empty initial snapshot, got %+v", initial)
	}

	next := Build([]rules.Rule{rule(1, true, "bot")})
	if !h.Update(next) {
		t.Error("Expected Update to report a change")
	}
	if h.Load() != next {
		t.Error("Load did not return the installed snapshot")
	}

	same := Build([]rules.Rule{rule(1, true, "bot")})
	if h.Update(same) {
		t.Error("Expected Update with identical content to report no change")
	}
}

func TestHolder_SubscribersNotifiedOnChange(t *testing.T) {
	h := NewHolder()
	first, unsub1 := h.Subscribe()
	defer unsub1()
	second, unsub2 := h.Subscribe()
	defer unsub2()

	if h.Subscribers() != 2 {
		t.Fatalf("Expected 2 subscribers, got %d", h.Subscribers())
	}

	next := Build([]rules.Rule{rule(1, true, "bot")})
	h.Update(next)

	for i, ch := range []<-chan string{first, second} {
		select {
		case etag := <-ch:
			if etag != next.ETag {
				t.Errorf("subscriber %d got %s, want %s", i, etag, next.ETag)
			}
		case <-time.After(time.Second):
			t.Errorf("subscriber %d was not notified", i)
		}
	}

	h.Update(Build([]rules.Rule{rule(1, true, "bot")}))
	select {
	case etag := <-first:
		t.Errorf("unexpected notification for unchanged content: %s", etag)
	default:
	}
}

func TestHolder_PublishNonBlocking(t *testing.T) {
	h := NewHolder()
	updates, unsub := h.Subscribe()
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			h.Update(Build([]rules.Rule{rule(1, true, string(rune('a'+i)))}))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Update blocked on a slow subscriber")
	}
	if len(updates) != 1 {
		t.Errorf("Expected one buffered update, got %d", len(updates))
	}
}

func TestHolder_UnsubscribeClosesAndIsIdempotent(t *testing.T) {
	h := NewHolder()
	updates, unsub := h.Subscribe()

	unsub()
	unsub()

	select {
	case _, ok := <-updates:
		if ok {
			t.Error("Expected channel to be closed after unsubscribe")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Timeout waiting for channel close")
	}
	if h.Subscribers() != 0 {
		t.Errorf("Expected 0 subscribers, got %d", h.Subscribers())
	}

	h.Update(Build([]rules.Rule{rule(1, true, "bot")}))
}

func TestHolder_ConcurrentAccess(t *testing.T) {
	h := NewHolder()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if h.Load() == nil {
				t.Error("Load returned nil")
			}
		}()
		go func(n int) {
			defer wg.Done()
			h.Update(Build([]rules.Rule{rule(int64(n%5+1), true, "bot")}))
		}(i)
	}
	wg.Wait()

	if h.Load() == nil {
		t.Error("Final Load returned nil")
	}
}

func TestSnapshotMarshaling(t *testing.T) {
	snap := Build([]rules.Rule{{
		ID: 1, Name: "office", Enabled: true, MatchMode: rules.MatchAll,
		Conditions: []rules.Condition{{Field: rules.FieldIP, Operator: rules.OpInIPRange, Value: "10.0.0.0/8"}},
	}})

	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("Failed to marshal snapshot: %v", err)
	}

	var decoded Snapshot
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal snapshot: %v", err)
	}
	if decoded.ETag != snap.ETag {
		t.Errorf("ETag mismatch: %s vs %s", decoded.ETag, snap.ETag)
	}
	if len(decoded.Rules) != 1 || decoded.Rules[0].MatchMode != rules.MatchAll {
		t.Errorf("unexpected decoded rules: %+v", decoded.Rules)
	}
}
