// internal/model/queue_entry.go
package model

import "time"

type DueBucket string

const (
	BucketOverdue  DueBucket = "overdue"
	BucketToday    DueBucket = "today"
	BucketTomorrow DueBucket = "tomorrow"
	BucketFuture   DueBucket = "future"
)

// QueueEntry is a transient view of one prospect's next pending step.
// It is rebuilt on every queue load and never stored.
type QueueEntry struct {
	ProspectID   string    `json:"prospect_id"`
	ProspectName string    `json:"prospect_name"`
	Company      string    `json:"company"`
	Title        string    `json:"title"`
	OwnerID      string    `json:"owner_id"`
	OwnerName    string    `json:"owner_name,omitempty"`
	CampaignID   string    `json:"campaign_id"`
	CampaignName string    `json:"campaign_name"`
	StepIndex    int       `json:"step_index"`
	Step         Step      `json:"step"`
	Channel      Channel   `json:"channel"`
	DueAt        time.Time `json:"due_at"`
	DueDiffDays  int       `json:"due_diff_days"`
	Bucket       DueBucket `json:"bucket"`

	Tokens          []string `json:"merge_fields"`
	MissingFields   []string `json:"missing_fields"`
	ResolvedSubject string   `json:"filled_subject"`
	ResolvedBody    string   `json:"filled_body"`
	ChannelPresent  bool     `json:"channel_present"`
	IsReady         bool     `json:"is_ready"`

	Fallback *Fallback `json:"fallback,omitempty"`
}

// Queue is the partitioned review queue.
type Queue struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Overdue     []*QueueEntry `json:"overdue"`
	Today       []*QueueEntry `json:"today"`
	Tomorrow    []*QueueEntry `json:"tomorrow"`
	Future      []*QueueEntry `json:"future"`
	Diagnostics []Fallback    `json:"diagnostics,omitempty"`
}

// Entries returns all entries, most overdue first.
func (q *Queue) Entries() []*QueueEntry {
	out := make([]*QueueEntry, 0, len(q.Overdue)+len(q.Today)+len(q.Tomorrow)+len(q.Future))
	out = append(out, q.Overdue...)
	out = append(out, q.Today...)
	out = append(out, q.Tomorrow...)
	return append(out, q.Future...)
}

// Find returns the entry for a prospect, or nil.
func (q *Queue) Find(prospectID string) *QueueEntry {
	for _, e := range q.Entries() {
		if e.ProspectID == prospectID {
			return e
		}
	}
	return nil
}
