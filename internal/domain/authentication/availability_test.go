package authentication

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func slot(day time.Time, startH, endH int, available bool) Availability {
	return Availability{
		Day:       day,
		Start:     time.Duration(startH) * time.Hour,
		End:       time.Duration(endH) * time.Hour,
		Available: available,
	}
}

func TestHasSlotBeforeCutoff(t *testing.T) {
	now := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)
	today := truncateDay(now)
	// Ends on 6 May at 18:00, so the cutoff is 15:00 that day.
	auctionEnd := time.Date(2026, 5, 6, 18, 0, 0, 0, time.UTC)
	endDate := truncateDay(auctionEnd)

	tests := []struct {
		name  string
		slots []Availability
		want  bool
	}{
		{name: "no slots", want: false},
		{name: "today earlier than now still counts", slots: []Availability{slot(today, 8, 9, true)}, want: true},
		{name: "tomorrow", slots: []Availability{slot(today.AddDate(0, 0, 1), 20, 22, true)}, want: true},
		{name: "end date ending before cutoff", slots: []Availability{slot(endDate, 12, 14, true)}, want: true},
		{name: "end date ending at cutoff", slots: []Availability{slot(endDate, 13, 15, true)}, want: true},
		{name: "end date running into cutoff", slots: []Availability{slot(endDate, 14, 16, true)}, want: false},
		{name: "end date after cutoff", slots: []Availability{slot(endDate, 16, 17, true)}, want: false},
		{name: "yesterday", slots: []Availability{slot(today.AddDate(0, 0, -1), 9, 17, true)}, want: false},
		{name: "after end date", slots: []Availability{slot(endDate.AddDate(0, 0, 1), 9, 17, true)}, want: false},
		{name: "marked unavailable", slots: []Availability{slot(today.AddDate(0, 0, 1), 9, 17, false)}, want: false},
		{
			name: "one good slot among bad ones",
			slots: []Availability{
				slot(endDate, 14, 18, true),
				slot(today.AddDate(0, 0, 1), 9, 10, false),
				slot(endDate, 9, 10, true),
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasSlotBeforeCutoff(tt.slots, now, auctionEnd))
		})
	}
}

func TestAvailability_Covers(t *testing.T) {
	day := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	s := slot(day, 9, 17, true)

	assert.True(t, s.Covers(day.Add(9*time.Hour)))
	assert.True(t, s.Covers(day.Add(16*time.Hour+59*time.Minute)))
	assert.False(t, s.Covers(day.Add(17*time.Hour)))
	assert.False(t, s.Covers(day.Add(8*time.Hour)))
}

func TestStatuses(t *testing.T) {
	assert.True(t, AssignmentNotified.IsActive())
	assert.True(t, AssignmentCompleted.IsActive())
	assert.False(t, AssignmentReassigned.IsActive())
	assert.False(t, AssignmentCancelled.IsActive())

	for _, s := range []AssignmentStatus{AssignmentNotified, AssignmentCompleted, AssignmentReassigned, AssignmentCancelled} {
		parsed, err := ParseAssignmentStatus(s.String())
		assert.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	for _, s := range []RequestStatus{RequestPending, RequestApproved, RequestDeclined, RequestCancelled} {
		parsed, err := ParseRequestStatus(s.String())
		assert.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	assert.Equal(t, RequestApproved, DecisionApprove.RequestStatus())
	assert.Equal(t, RequestDeclined, DecisionDecline.RequestStatus())
}
