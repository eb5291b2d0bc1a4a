package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mmynk/ducats/internal/apperrors"
)

// DirSink saves exports as files in a directory.
type DirSink struct {
	Dir string
}

// NewDirSink creates a DirSink writing into dir.
func NewDirSink(dir string) *DirSink {
	return &DirSink{Dir: dir}
}

// Kind implements Sink.
func (s *DirSink) Kind() SinkKind { return KindFile }

// Activate implements Sink. The file is written in the background and
// replaced atomically, so a reader never sees a partial export.
func (s *DirSink) Activate(ctx context.Context, p Payload) (<-chan Completion, error) {
	if p.FileName == "" || filepath.Base(p.FileName) != p.FileName {
		return nil, apperrors.Validation("file_name", p.FileName, nil)
	}

	ch := make(chan Completion, 1)
	go func() {
		if err := ctx.Err(); err != nil {
			ch <- Cancelled()
			return
		}
		path, err := s.write(p)
		if err != nil {
			ch <- FailedWith(err)
			return
		}
		ch <- Saved(path)
	}()
	return ch, nil
}

func (s *DirSink) write(p Payload) (string, error) {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.Dir, "."+p.FileName+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(p.Data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	path := filepath.Join(s.Dir, p.FileName)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to move export file into place: %w", err)
	}
	return path, nil
}

// PendingSink parks payloads for an external collaborator, such as a client
// application that presents its own save or compose UI. The collaborator
// fetches the payload with Pending and reports back once with Resolve.
type PendingSink struct {
	kind SinkKind

	mu     sync.Mutex
	parked map[string]*parked
}

type parked struct {
	payload Payload
	ch      chan Completion
	done    chan struct{}
}

// NewPendingSink creates a PendingSink reporting the given kind.
func NewPendingSink(kind SinkKind) *PendingSink {
	return &PendingSink{
		kind:   kind,
		parked: make(map[string]*parked),
	}
}

// Kind implements Sink.
func (s *PendingSink) Kind() SinkKind { return s.kind }

// Activate implements Sink. The payload stays parked until Resolve is called
// or ctx is done.
func (s *PendingSink) Activate(ctx context.Context, p Payload) (<-chan Completion, error) {
	entry := &parked{
		payload: p,
		ch:      make(chan Completion, 1),
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	s.parked[p.AttemptID] = entry
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			s.drop(p.AttemptID, entry)
		case <-entry.done:
		}
	}()
	return entry.ch, nil
}

// Pending returns the parked payload for attemptID.
func (s *PendingSink) Pending(attemptID string) (Payload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.parked[attemptID]
	if !ok {
		return Payload{}, apperrors.NotFound("pending export", attemptID)
	}
	return entry.payload, nil
}

// Resolve delivers the collaborator's completion signal for attemptID. Only
// the first call for an attempt is accepted; later calls fail with NotFound.
func (s *PendingSink) Resolve(attemptID string, c Completion) error {
	s.mu.Lock()
	entry, ok := s.parked[attemptID]
	if ok {
		delete(s.parked, attemptID)
	}
	s.mu.Unlock()

	if !ok {
		return apperrors.NotFound("pending export", attemptID)
	}
	entry.ch <- c
	close(entry.done)
	return nil
}

func (s *PendingSink) drop(attemptID string, entry *parked) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.parked[attemptID] == entry {
		delete(s.parked, attemptID)
	}
}
