package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/unclebandit/outreach-engine/internal/model"
	"github.com/unclebandit/outreach-engine/internal/service"
)

func TestClassifyDue(t *testing.T) {
	cases := []struct {
		name   string
		due    *time.Time
		diff   int
		bucket model.DueBucket
	}{
		{"two days late", daysFromNow(-2), -2, model.BucketOverdue},
		{"nil is due now", nil, 0, model.BucketToday},
		{"exactly now", daysFromNow(0), 0, model.BucketToday},
		{"a few hours ahead rounds up", ptr(testNow.Add(3 * time.Hour)), 1, model.BucketTomorrow},
		{"a few hours late rounds to today", ptr(testNow.Add(-3 * time.Hour)), 0, model.BucketToday},
		{"one day", daysFromNow(1), 1, model.BucketTomorrow},
		{"three days", daysFromNow(3), 3, model.BucketFuture},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			diff, bucket := service.ClassifyDue(tc.due, testNow)
			assert.Equal(t, tc.diff, diff)
			assert.Equal(t, tc.bucket, bucket)
		})
	}
}

func ptr[T any](v T) *T { return &v }
