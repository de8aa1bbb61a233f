package anchorport

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/mapadevsports/uwbv2/internal/db"
	"github.com/mapadevsports/uwbv2/internal/ingest"
)

func TestMonitorEmitsLines(t *testing.T) {
	data := []byte("tid:4,range:(100,110,103),cmd:2\ntid:5,range:(90,95,99),cmd:2\n")
	port := NewFromPort(NewMockPort(data))

	done := make(chan error, 1)
	go func() { done <- port.Monitor(context.Background()) }()

	var got []string
	for line := range port.Events() {
		got = append(got, line)
	}
	if err := <-done; err != nil {
		t.Fatalf("Monitor returned error: %v", err)
	}

	want := []string{
		"tid:4,range:(100,110,103),cmd:2",
		"tid:5,range:(90,95,99),cmd:2",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("emitted lines mismatch (-want +got):\n%s", diff)
	}
}

func TestMonitorStopsOnCancel(t *testing.T) {
	// A large unterminated buffer keeps the scanner producing lines.
	var data []byte
	for i := 0; i < 1000; i++ {
		data = append(data, []byte("tid:4,range:(100,110,103),cmd:2\n")...)
	}
	port := NewFromPort(NewMockPort(data))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- port.Monitor(ctx) }()

	<-port.Events()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Monitor returned error after cancel: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not stop after cancel")
	}
}

func TestMonitorPropagatesReadError(t *testing.T) {
	port := NewFromPort(NewFailingMockPort("device unplugged"))

	done := make(chan error, 1)
	go func() { done <- port.Monitor(context.Background()) }()

	for range port.Events() {
	}
	if err := <-done; err == nil {
		t.Fatal("Monitor returned nil for a failing port")
	}
}

func TestBatcherFlushesOnChannelClose(t *testing.T) {
	database := db.NewTestDB(t)
	orch := ingest.New(database, ingest.Config{Offset: 40.0})
	b := NewBatcher(orch, time.Minute, 64) // ticker never fires in this test

	events := make(chan string, 3)
	events <- "tid:4,range:(100,110,103),kx:152.75,ky:101.3,cmd:2"
	events <- "tid:5,range:(90,95,99),cmd:2"
	events <- "garbage"
	close(events)

	if err := b.Run(context.Background(), events); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	n, err := database.CountReadings(context.Background(), "")
	if err != nil {
		t.Fatalf("CountReadings failed: %v", err)
	}
	if n != 2 {
		t.Errorf("stored rows = %d, want 2", n)
	}
}

func TestBatcherFlushesWhenFull(t *testing.T) {
	database := db.NewTestDB(t)
	orch := ingest.New(database, ingest.Config{Offset: 40.0})
	b := NewBatcher(orch, time.Minute, 2)

	events := make(chan string)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, events) }()

	events <- "tid:4,range:(100,110,103),cmd:2"
	events <- "tid:5,range:(90,95,99),cmd:2"

	// The full-batch flush happens before the next receive, so the batch is
	// committed once a third send is accepted.
	events <- "tid:6,range:(80,85,88),cmd:2"
	if n, _ := database.CountReadings(ctx, ""); n != 2 {
		t.Errorf("stored rows after full batch = %d, want 2", n)
	}

	cancel()
	<-done
}

func TestBatcherFinalFlushOnCancel(t *testing.T) {
	database := db.NewTestDB(t)
	orch := ingest.New(database, ingest.Config{Offset: 40.0})
	b := NewBatcher(orch, time.Minute, 64)

	events := make(chan string)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, events) }()

	events <- "tid:4,range:(100,110,103),cmd:2"
	cancel()

	if err := <-done; err != context.Canceled {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
	if n, _ := database.CountReadings(context.Background(), ""); n != 1 {
		t.Errorf("stored rows after cancel = %d, want 1", n)
	}
}

func TestNewBatcherDefaults(t *testing.T) {
	b := NewBatcher(nil, 0, 0)
	if b.flushEvery != time.Second {
		t.Errorf("flushEvery = %v, want 1s", b.flushEvery)
	}
	if b.maxBatch != 64 {
		t.Errorf("maxBatch = %d, want 64", b.maxBatch)
	}
}
