package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestAddInvalidSpec(t *testing.T) {
	s := New(time.UTC, slog.Default())
	err := s.Add("bad", "not a cron spec", func(context.Context) error { return nil })
	if err == nil {
		t.Fatal("expected error for invalid spec")
	}
}

func TestNextUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	s := New(loc, slog.Default())
	if err := s.Add("reminders", "0 9 * * *", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Add: %v", err)
	}

	s.Start(context.Background())
	defer s.Stop()

	next, ok := s.Next("reminders")
	if !ok {
		t.Fatal("job not registered")
	}
	next = next.In(loc)
	if next.Hour() != 9 || next.Minute() != 0 {
		t.Errorf("next = %v, want 09:00 local", next)
	}
	if _, ok := s.Next("missing"); ok {
		t.Error("unknown job reported as registered")
	}
}

func TestJobReceivesContext(t *testing.T) {
	s := New(time.UTC, slog.Default())
	got := make(chan error, 1)
	s.Add("probe", "@every 1h", func(ctx context.Context) error {
		<-ctx.Done()
		got <- ctx.Err()
		return ctx.Err()
	})

	s.Start(context.Background())
	entry := s.cron.Entries()[0]
	go entry.WrappedJob.Run()

	s.Stop()
	select {
	case err := <-got:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("ctx err = %v, want Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job did not observe Stop")
	}
}
