package service

import (
	"math"
	"time"

	"github.com/unclebandit/outreach-engine/internal/model"
)

// ClassifyDue returns the whole-day difference between the next action and
// now (rounded up) and its bucket. A nil timestamp counts as due now.
func ClassifyDue(nextActionAt *time.Time, now time.Time) (int, model.DueBucket) {
	due := now
	if nextActionAt != nil {
		due = *nextActionAt
	}
	diff := int(math.Ceil(due.Sub(now).Hours() / 24))

	switch {
	case diff < 0:
		return diff, model.BucketOverdue
	case diff == 0:
		return diff, model.BucketToday
	case diff == 1:
		return diff, model.BucketTomorrow
	default:
		return diff, model.BucketFuture
	}
}
