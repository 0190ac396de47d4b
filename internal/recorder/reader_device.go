package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/niveshya/leadops/internal/platform/clock"
)

// DefaultChunkSize is the read size used by ReaderDevice.
const DefaultChunkSize = 32 * 1024

// ReaderDevice captures encoded audio from a byte source such as an encoder's
// stdout. Bytes read while paused are discarded.
type ReaderDevice struct {
	Open      func(ctx context.Context) (io.ReadCloser, error)
	Clock     clock.Clock
	ChunkSize int
}

// Acquire opens the source.
func (d ReaderDevice) Acquire(ctx context.Context) (Stream, error) {
	if d.Open == nil {
		return nil, errors.New("recorder: reader device has no source")
	}
	src, err := d.Open(ctx)
	if err != nil {
		return nil, err
	}
	clk := d.Clock
	if clk == nil {
		clk = clock.Real()
	}
	size := d.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &readerStream{src: src, clock: clk, chunkSize: size, done: make(chan struct{})}, nil
}

type readerStream struct {
	src       io.ReadCloser
	clock     clock.Clock
	chunkSize int

	mu      sync.Mutex
	h       Handlers
	buf     []byte
	started bool
	paused  bool
	closing bool

	done      chan struct{}
	doneOnce  sync.Once
	closeOnce sync.Once
	closeErr  error
	readWG    sync.WaitGroup
	tickWG    sync.WaitGroup
}

func (s *readerStream) Start(timeslice time.Duration, h Handlers) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("recorder: stream already started")
	}
	if s.closing {
		return errors.New("recorder: stream closed")
	}
	s.started = true
	s.h = h
	s.readWG.Add(1)
	go s.readLoop()
	s.tickWG.Add(1)
	go s.tickLoop(timeslice)
	return nil
}

func (s *readerStream) readLoop() {
	defer s.readWG.Done()
	tmp := make([]byte, s.chunkSize)
	for {
		n, err := s.src.Read(tmp)
		s.mu.Lock()
		if n > 0 && !s.paused {
			s.buf = append(s.buf, tmp[:n]...)
		}
		closing := s.closing
		onError := s.h.OnError
		s.mu.Unlock()
		if err == nil {
			continue
		}
		if !errors.Is(err, io.EOF) && !closing && onError != nil {
			onError(fmt.Errorf("read source: %w", err))
		}
		return
	}
}

func (s *readerStream) tickLoop(timeslice time.Duration) {
	defer s.tickWG.Done()
	ticker := s.clock.NewTicker(timeslice)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.emit()
		}
	}
}

// emit delivers the pending buffer without holding s.mu.
func (s *readerStream) emit() {
	s.mu.Lock()
	data := s.buf
	s.buf = nil
	onChunk := s.h.OnChunk
	s.mu.Unlock()
	if len(data) > 0 && onChunk != nil {
		onChunk(data)
	}
}

func (s *readerStream) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
	return nil
}

func (s *readerStream) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	return nil
}

// Stop halts the tick loop, drains the reader and flushes what remains.
func (s *readerStream) Stop() error {
	s.doneOnce.Do(func() { close(s.done) })
	s.tickWG.Wait()
	err := s.closeSource()
	s.readWG.Wait()
	s.emit()
	return err
}

func (s *readerStream) Close() error {
	s.doneOnce.Do(func() { close(s.done) })
	return s.closeSource()
}

func (s *readerStream) closeSource() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closing = true
		s.mu.Unlock()
		s.closeErr = s.src.Close()
	})
	return s.closeErr
}
