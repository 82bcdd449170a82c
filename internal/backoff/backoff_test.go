package backoff_test

import (
	"testing"
	"time"

	"folio/internal/backoff"
	"folio/internal/config"
)

func TestExponentialSequenceCapsAtMax(t *testing.T) {
	s := backoff.New(15, 2, 900)
	want := []int{15, 30, 60, 120, 240, 480, 900, 900}
	for i, w := range want {
		if got := s.Next(); got != time.Duration(w)*time.Second {
			t.Fatalf("step %d: got %v want %ds", i, got, w)
		}
	}
	s.Reset()
	if got := s.Next(); got != 15*time.Second {
		t.Fatalf("expected reset to base, got %v", got)
	}
}

func TestConstantCadenceWithUnitModifier(t *testing.T) {
	s := backoff.FromConfig(config.Default().Backoff)
	for i := 0; i < 5; i++ {
		if got := s.Next(); got != 15*time.Second {
			t.Fatalf("step %d: got %v", i, got)
		}
	}
}

func TestInvalidParametersAreClamped(t *testing.T) {
	s := backoff.New(10, 0.5, 5)
	if got := s.Next(); got != 10*time.Second {
		t.Fatalf("unexpected first delay %v", got)
	}
	if got := s.Peek(); got != 10*time.Second {
		t.Fatalf("expected max raised to base, got %v", got)
	}
}

func TestFormatSeconds(t *testing.T) {
	cases := map[time.Duration]string{
		15 * time.Second:        "15s",
		2500 * time.Millisecond: "2.5s",
		900 * time.Second:       "900s",
	}
	for d, want := range cases {
		if got := backoff.FormatSeconds(d); got != want {
			t.Fatalf("FormatSeconds(%v) = %q want %q", d, got, want)
		}
	}
}
