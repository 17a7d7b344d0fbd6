// Package webhook notifies external endpoints when the enabled rule set
// changes, so trackers holding a cached copy can refetch the snapshot.
package webhook

import (
	"time"

	"github.com/google/uuid"

	"github.com/Chardonneaur/VisitorExclusion/internal/snapshot"
)

// EventSnapshotUpdated is the only event type sent today.
const EventSnapshotUpdated = "snapshot.updated"

// Event is the JSON body of a notification.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"event"`
	Timestamp  time.Time `json:"timestamp"`
	ETag       string    `json:"etag"`
	RuleCount  int       `json:"ruleCount"`
	SnapshotAt time.Time `json:"snapshotLoadedAt"`
}

// NewSnapshotEvent describes snap as a snapshot.updated event.
func NewSnapshotEvent(snap *snapshot.Snapshot, now time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       EventSnapshotUpdated,
		Timestamp:  now.UTC(),
		ETag:       snap.ETag,
		RuleCount:  len(snap.Rules),
		SnapshotAt: snap.LoadedAt,
	}
}

// Endpoint is one notification target.
type Endpoint struct {
	URL    string
	Secret string // signs the body; empty sends unsigned requests
}
