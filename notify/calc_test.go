package notify

import (
	"testing"
	"time"
)

func TestFireTime(t *testing.T) {
	start := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

	t.Run("explicit lead", func(t *testing.T) {
		got := FireTime(start, 15)
		want := start.Add(-15 * time.Minute)
		if !got.Equal(want) {
			t.Errorf("FireTime() = %v, want %v", got, want)
		}
	})

	t.Run("zero lead falls back to default", func(t *testing.T) {
		got := FireTime(start, 0)
		want := start.Add(-DefaultLeadMinutes * time.Minute)
		if !got.Equal(want) {
			t.Errorf("FireTime() = %v, want %v", got, want)
		}
	})

	t.Run("negative lead falls back to default", func(t *testing.T) {
		got := FireTime(start, -5)
		want := start.Add(-DefaultLeadMinutes * time.Minute)
		if !got.Equal(want) {
			t.Errorf("FireTime() = %v, want %v", got, want)
		}
	})
}
