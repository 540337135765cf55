/*
Package io provides the buffered report file writer used by the output sinks.

Reports are written to "<path>.tmp" and renamed to their final name on Close,
so a crashed or interrupted run never leaves a half-written report under the
final name. A background goroutine flushes periodically so a long scan's
report can be tailed while it runs.
*/
package io

/*
rxsub — concurrent subdomain discovery from wordlists and Certificate Transparency logs
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultBufferSize is the default buffer size for report writes.
	DefaultBufferSize = 64 * 1024
	// FlushInterval is how often buffers are flushed in the background.
	FlushInterval = 2 * time.Second
	// TempSuffix is appended to the final path while the file is being written.
	TempSuffix = ".tmp"
)

// ErrBufferClosed is returned when writing to a closed buffer.
var ErrBufferClosed = errors.New("write buffer closed")

// BufferMetrics holds counters for a buffer.
type BufferMetrics struct {
	BytesWritten atomic.Int64
	WriteCount   atomic.Int64
	FlushCount   atomic.Int64
	ErrorCount   atomic.Int64
}

// AsyncBufferOptions configures an AsyncBuffer.
type AsyncBufferOptions struct {
	BufferSize    int
	FlushInterval time.Duration
	Compressed    bool
}

// DefaultAsyncBufferOptions returns the default options for AsyncBuffer.
func DefaultAsyncBufferOptions() *AsyncBufferOptions {
	return &AsyncBufferOptions{
		BufferSize:    DefaultBufferSize,
		FlushInterval: FlushInterval,
	}
}

// AsyncBuffer is a mutex-guarded buffered file writer with background flushing
// and an atomic rename on Close. Safe for concurrent use.
type AsyncBuffer struct {
	finalPath string
	tmpPath   string

	mu        sync.Mutex
	file      *os.File
	gzWriter  *gzip.Writer
	bufWriter *bufio.Writer
	closed    bool

	cancel  context.CancelFunc
	flushWg sync.WaitGroup
	metrics BufferMetrics
}

// NewAsyncBuffer creates the temp file for path and starts the background flusher.
// The flusher stops when ctx is done or the buffer is closed; Close must still
// be called to finalize the file.
func NewAsyncBuffer(ctx context.Context, path string, options *AsyncBufferOptions) (*AsyncBuffer, error) {
	if options == nil {
		options = DefaultAsyncBufferOptions()
	}
	if options.BufferSize <= 0 {
		options.BufferSize = DefaultBufferSize
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp := path + TempSuffix
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", tmp, err)
	}

	ab := &AsyncBuffer{
		finalPath: path,
		tmpPath:   tmp,
		file:      file,
	}
	if options.Compressed {
		gzw, err := gzip.NewWriterLevel(file, gzip.BestSpeed)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to create gzip writer: %w", err)
		}
		ab.gzWriter = gzw
		ab.bufWriter = bufio.NewWriterSize(gzw, options.BufferSize)
	} else {
		ab.bufWriter = bufio.NewWriterSize(file, options.BufferSize)
	}

	if options.FlushInterval > 0 {
		fctx, cancel := context.WithCancel(ctx)
		ab.cancel = cancel
		ab.flushWg.Add(1)
		go ab.backgroundFlusher(fctx, options.FlushInterval)
	}
	return ab, nil
}

// Path returns the final path the buffer renames to on Close.
func (ab *AsyncBuffer) Path() string { return ab.finalPath }

// Metrics returns the buffer's counters.
func (ab *AsyncBuffer) Metrics() *BufferMetrics { return &ab.metrics }

// Write appends p to the buffer.
func (ab *AsyncBuffer) Write(p []byte) (int, error) {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	if ab.closed {
		return 0, ErrBufferClosed
	}
	n, err := ab.bufWriter.Write(p)
	ab.metrics.BytesWritten.Add(int64(n))
	ab.metrics.WriteCount.Add(1)
	if err != nil {
		ab.metrics.ErrorCount.Add(1)
	}
	return n, err
}

// WriteString appends s to the buffer.
func (ab *AsyncBuffer) WriteString(s string) (int, error) {
	return ab.Write([]byte(s))
}

// Flush pushes buffered bytes to the file.
func (ab *AsyncBuffer) Flush() error {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	if ab.closed {
		return ErrBufferClosed
	}
	return ab.flushLocked()
}

func (ab *AsyncBuffer) flushLocked() error {
	if err := ab.bufWriter.Flush(); err != nil {
		ab.metrics.ErrorCount.Add(1)
		return fmt.Errorf("flushing %s: %w", ab.tmpPath, err)
	}
	if ab.gzWriter != nil {
		if err := ab.gzWriter.Flush(); err != nil {
			ab.metrics.ErrorCount.Add(1)
			return fmt.Errorf("flushing gzip stream %s: %w", ab.tmpPath, err)
		}
	}
	ab.metrics.FlushCount.Add(1)
	return nil
}

func (ab *AsyncBuffer) backgroundFlusher(ctx context.Context, interval time.Duration) {
	defer ab.flushWg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ab.Flush(); err != nil && !errors.Is(err, ErrBufferClosed) {
				logrus.Warnf("Background flush failed: %v", err)
			}
		}
	}
}

// Close flushes, closes and renames the temp file to its final path. It runs
// even if the creating context was cancelled, so interrupted scans keep their
// partial report. Calling Close twice is a no-op.
func (ab *AsyncBuffer) Close() error {
	if ab.cancel != nil {
		ab.cancel()
	}
	ab.flushWg.Wait()

	ab.mu.Lock()
	defer ab.mu.Unlock()
	if ab.closed {
		return nil
	}
	ab.closed = true

	var errs []error
	if err := ab.bufWriter.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("final flush: %w", err))
	}
	if ab.gzWriter != nil {
		if err := ab.gzWriter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing gzip stream: %w", err))
		}
	}
	if err := ab.file.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("sync: %w", err))
	}
	if err := ab.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close: %w", err))
	}
	if err := os.Rename(ab.tmpPath, ab.finalPath); err != nil {
		errs = append(errs, fmt.Errorf("rename %s: %w", ab.tmpPath, err))
	}
	return errors.Join(errs...)
}
