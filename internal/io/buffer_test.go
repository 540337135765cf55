package io

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestAsyncBufferCloseRenamesTempFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	final := filepath.Join(dir, "nested", "report.txt")

	ab, err := NewAsyncBuffer(context.Background(), final, nil)
	if err != nil {
		t.Fatalf("NewAsyncBuffer: %v", err)
	}
	if _, err := ab.WriteString("hello\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(final); err == nil {
		t.Fatal("final file should not exist before Close")
	}
	if err := ab.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := ab.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	b, err := os.ReadFile(final)
	if err != nil {
		t.Fatalf("read final: %v", err)
	}
	if string(b) != "hello\n" {
		t.Fatalf("unexpected content: %q", string(b))
	}
	if _, err := os.Stat(final + TempSuffix); err == nil {
		t.Fatal("expected temp file to be renamed away")
	}
	if _, err := ab.WriteString("late"); !errors.Is(err, ErrBufferClosed) {
		t.Fatalf("write after close: %v", err)
	}
}

func TestAsyncBufferCloseAfterContextCanceled(t *testing.T) {
	t.Parallel()

	final := filepath.Join(t.TempDir(), "out.jsonl")
	ctx, cancel := context.WithCancel(context.Background())
	ab, err := NewAsyncBuffer(ctx, final, nil)
	if err != nil {
		t.Fatalf("NewAsyncBuffer: %v", err)
	}
	_, _ = ab.WriteString("partial\n")
	cancel()

	if err := ab.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	b, _ := os.ReadFile(final)
	if string(b) != "partial\n" {
		t.Fatalf("unexpected content: %q", string(b))
	}
}

func TestAsyncBufferBackgroundFlush(t *testing.T) {
	t.Parallel()

	final := filepath.Join(t.TempDir(), "live.txt")
	ab, err := NewAsyncBuffer(context.Background(), final, &AsyncBufferOptions{FlushInterval: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewAsyncBuffer: %v", err)
	}
	defer ab.Close()

	_, _ = ab.WriteString("tail me\n")
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if b, _ := os.ReadFile(final + TempSuffix); string(b) == "tail me\n" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("background flusher never wrote the temp file")
}

func TestAsyncBufferConcurrentWrites(t *testing.T) {
	t.Parallel()

	final := filepath.Join(t.TempDir(), "many.txt")
	ab, err := NewAsyncBuffer(context.Background(), final, &AsyncBufferOptions{BufferSize: 64})
	if err != nil {
		t.Fatalf("NewAsyncBuffer: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = ab.WriteString("line-of-text\n")
			}
		}()
	}
	wg.Wait()
	if err := ab.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	b, _ := os.ReadFile(final)
	lines := strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
	if len(lines) != 800 {
		t.Fatalf("expected 800 lines, got %d", len(lines))
	}
	for _, l := range lines {
		if l != "line-of-text" {
			t.Fatalf("interleaved write: %q", l)
		}
	}
	if ab.Metrics().WriteCount.Load() != 800 {
		t.Fatalf("WriteCount = %d", ab.Metrics().WriteCount.Load())
	}
}

func TestAsyncBufferCompressed(t *testing.T) {
	t.Parallel()

	final := filepath.Join(t.TempDir(), "report.txt.gz")
	ab, err := NewAsyncBuffer(context.Background(), final, &AsyncBufferOptions{Compressed: true})
	if err != nil {
		t.Fatalf("NewAsyncBuffer: %v", err)
	}
	_, _ = ab.WriteString("compressed\n")
	if err := ab.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(final)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	b, _ := io.ReadAll(zr)
	if string(b) != "compressed\n" {
		t.Fatalf("unexpected content: %q", string(b))
	}
}
