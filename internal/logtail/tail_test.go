package logtail_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"docbridge/internal/logtail"
)

func TestReadTrailingLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docbridge.log")
	if err := os.WriteFile(path, []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	chunk, err := logtail.Read(path, 2)
	if err != nil {
		t.Fatalf("read returned error: %v", err)
	}
	if len(chunk.Lines) != 2 || chunk.Lines[0] != "two" || chunk.Lines[1] != "three" {
		t.Fatalf("unexpected lines: %#v", chunk.Lines)
	}
	if chunk.Offset == 0 {
		t.Fatal("expected offset to advance")
	}
}

func TestReadWholeFileWhenLimitIsZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docbridge.log")
	if err := os.WriteFile(path, []byte("one\ntwo\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	chunk, err := logtail.Read(path, 0)
	if err != nil {
		t.Fatalf("read returned error: %v", err)
	}
	if len(chunk.Lines) != 2 {
		t.Fatalf("expected both lines, got %#v", chunk.Lines)
	}
}

func TestReadMissingFileYieldsEmptyChunk(t *testing.T) {
	chunk, err := logtail.Read(filepath.Join(t.TempDir(), "absent.log"), 10)
	if err != nil {
		t.Fatalf("read returned error: %v", err)
	}
	if len(chunk.Lines) != 0 || chunk.Offset != 0 {
		t.Fatalf("expected empty chunk, got %#v", chunk)
	}
}

func TestWaitPicksUpAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docbridge.log")
	if err := os.WriteFile(path, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	initial, err := logtail.Read(path, 1)
	if err != nil {
		t.Fatalf("initial read: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		chunk, err := logtail.Wait(context.Background(), path, initial.Offset, 5*time.Second)
		if err != nil {
			t.Errorf("wait error: %v", err)
			return
		}
		if len(chunk.Lines) != 1 || chunk.Lines[0] != "later" {
			t.Errorf("unexpected lines: %#v", chunk.Lines)
		}
	}()

	time.Sleep(200 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("wait did not observe appended line")
	}
}

func TestWaitRestartsAfterTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docbridge.log")
	if err := os.WriteFile(path, []byte("old line one\nold line two\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	initial, err := logtail.Read(path, 0)
	if err != nil {
		t.Fatalf("initial read: %v", err)
	}

	if err := os.WriteFile(path, []byte("fresh\n"), 0o644); err != nil {
		t.Fatalf("rewrite log: %v", err)
	}

	chunk, err := logtail.Wait(context.Background(), path, initial.Offset, time.Second)
	if err != nil {
		t.Fatalf("wait error: %v", err)
	}
	if len(chunk.Lines) != 1 || chunk.Lines[0] != "fresh" {
		t.Fatalf("expected replay from start, got %#v", chunk.Lines)
	}
}
