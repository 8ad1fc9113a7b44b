package model

import (
	"reflect"
	"testing"
	"time"
)

func TestSecondsLeft(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name      string
		expiresAt time.Time
		want      int64
	}{
		{"whole seconds remain", now.Add(100 * time.Second), 100},
		{"sub-second remainder rounds up", now.Add(22*time.Second + 300*time.Millisecond), 23},
		{"already expired clamps to zero", now.Add(-30 * time.Second), 0},
		{"exactly now", now, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := SessionRecord{ExpiresAt: tc.expiresAt}
			if got := rec.SecondsLeft(now); got != tc.want {
				t.Fatalf("SecondsLeft = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestReservationUUIDsDeterministicOrder(t *testing.T) {
	rec := SessionRecord{Reservations: map[string][]string{
		"ticket-9": {"uuid-3"},
		"ticket-1": {"uuid-1", "uuid-2"},
	}}
	want := []string{"uuid-1", "uuid-2", "uuid-3"}
	for i := 0; i < 10; i++ {
		if got := rec.ReservationUUIDs(); !reflect.DeepEqual(got, want) {
			t.Fatalf("ReservationUUIDs = %v, want %v", got, want)
		}
	}
}

func TestReservationUUIDsEmpty(t *testing.T) {
	rec := SessionRecord{}
	got := rec.ReservationUUIDs()
	if got == nil || len(got) != 0 {
		t.Fatalf("ReservationUUIDs on empty record = %v, want empty slice", got)
	}
}
