// Package snapshot holds the immutable, in-memory rule set the evaluator reads.
// A snapshot is built from the store's read model and swapped atomically, so
// readers never lock.
package snapshot

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/Chardonneaur/VisitorExclusion/internal/rules"
)

// Snapshot is one immutable version of the enabled rule set. Rules are
// ordered by ascending ID. Callers must not modify the slice.
type Snapshot struct {
	ETag     string       `json:"etag"`
	Rules    []rules.Rule `json:"rules"`
	LoadedAt time.Time    `json:"loadedAt"`
}

// Build creates a snapshot from the given rules, dropping disabled ones and
// ordering the rest by ID. The ETag depends only on rule content.
func Build(in []rules.Rule) *Snapshot {
	enabled := make([]rules.Rule, 0, len(in))
	for _, r := range in {
		if !r.Enabled {
			continue
		}
		if r.Conditions != nil {
			r.Conditions = slices.Clone(r.Conditions)
		}
		enabled = append(enabled, r)
	}
	slices.SortStableFunc(enabled, func(a, b rules.Rule) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return &Snapshot{
		ETag:     computeETag(enabled),
		Rules:    enabled,
		LoadedAt: time.Now().UTC(),
	}
}

func computeETag(rs []rules.Rule) string {
	blob, err := json.Marshal(rs)
	if err != nil {
		blob = []byte(fmt.Sprint(len(rs)))
	}
	return fmt.Sprintf(`W/"%016x"`, xxhash.Sum64(blob))
}

func empty() *Snapshot {
	return Build(nil)
}

// Holder owns the current snapshot and notifies subscribers when it changes.
type Holder struct {
	current atomic.Pointer[Snapshot]
	notifier
}

// NewHolder returns a Holder serving an empty snapshot.
func NewHolder() *Holder {
	h := &Holder{notifier: newNotifier()}
	h.current.Store(empty())
	return h
}

// Load returns the current snapshot; never nil.
func (h *Holder) Load() *Snapshot {
	return h.current.Load()
}

// Update installs s and reports whether the rule content changed. Subscribers
// are only notified of changes.
func (h *Holder) Update(s *Snapshot) bool {
	prev := h.current.Swap(s)
	if prev != nil && prev.ETag == s.ETag {
		return false
	}
	h.publish(s.ETag)
	return true
}
