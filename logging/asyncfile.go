// Package logging provides file sinks that never block the caller.
package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/log"
)

const defaultQueueSize = 256

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("async file is closed")

// AsyncFile appends to a file from a background goroutine. Writes are queued and
// dropped when the queue is full so that callers on the hot path never wait on disk.
type AsyncFile struct {
	log     log.Logger
	file    *os.File
	queue   chan []byte
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
	dropped atomic.Int64
}

// OpenAsyncFile opens path for appending, creating parent directories, and starts the
// background writer. queueSize <= 0 selects the default.
func OpenAsyncFile(logger log.Logger, path string, queueSize int) (*AsyncFile, error) {
	if logger == nil {
		logger = log.New()
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}

	af := &AsyncFile{
		log:   logger.New("file", path),
		file:  file,
		queue: make(chan []byte, queueSize),
	}
	af.wg.Add(1)
	go af.processQueue()
	return af, nil
}

// Write queues a copy of data. It returns ErrClosed after Close and drops the data
// silently when the queue is full.
func (af *AsyncFile) Write(data []byte) error {
	af.mu.Lock()
	defer af.mu.Unlock()

	if af.stopped {
		return ErrClosed
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	select {
	case af.queue <- dataCopy:
	default:
		af.dropped.Add(1)
	}
	return nil
}

// Dropped is the number of writes discarded because the queue was full.
func (af *AsyncFile) Dropped() int64 {
	return af.dropped.Load()
}

func (af *AsyncFile) processQueue() {
	defer af.wg.Done()

	for data := range af.queue {
		if _, err := af.file.Write(data); err != nil {
			af.log.Warn("Failed to write to file", "err", err)
		}
	}
}

// Close drains the queue and closes the file. It is safe to call more than once.
func (af *AsyncFile) Close() error {
	af.mu.Lock()
	if af.stopped {
		af.mu.Unlock()
		return nil
	}
	af.stopped = true
	close(af.queue)
	af.mu.Unlock()

	af.wg.Wait()
	if n := af.dropped.Load(); n > 0 {
		af.log.Warn("Dropped writes on full queue", "count", n)
	}
	return af.file.Close()
}
