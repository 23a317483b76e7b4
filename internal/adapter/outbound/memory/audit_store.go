package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pressroom-io/pressroom/internal/domain/audit"
)

// recentCapacity is the size of the in-memory ring buffer serving the
// recent-records endpoint.
const recentCapacity = 1000

// AuditStore writes audit records as JSON lines to a configurable sink
// and keeps the most recent records in a ring buffer for inspection.
//
// Supported outputs: "stdout", "stderr", "discard", "file://<path>".
type AuditStore struct {
	mu     sync.Mutex
	out    io.Writer
	closer io.Closer // non-nil for file outputs

	recent []audit.Record
	next   int
	filled bool
}

var (
	_ audit.Store  = (*AuditStore)(nil)
	_ audit.Reader = (*AuditStore)(nil)
)

// NewAuditStore opens the configured output.
func NewAuditStore(output string) (*AuditStore, error) {
	s := &AuditStore{
		recent: make([]audit.Record, recentCapacity),
	}

	switch {
	case output == "stdout":
		s.out = os.Stdout
	case output == "stderr":
		s.out = os.Stderr
	case output == "discard":
		s.out = io.Discard
	case strings.HasPrefix(output, "file://"):
		path := strings.TrimPrefix(output, "file://")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit file: %w", err)
		}
		s.out = f
		s.closer = f
	default:
		return nil, fmt.Errorf("unsupported audit output %q", output)
	}

	return s, nil
}

// Append writes the records as one JSON line each and adds them to the
// ring buffer.
func (s *AuditStore) Append(_ context.Context, records ...audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal audit record: %w", err)
		}
		if _, err := s.out.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("failed to write audit record: %w", err)
		}

		s.recent[s.next] = record
		s.next = (s.next + 1) % recentCapacity
		if s.next == 0 {
			s.filled = true
		}
	}
	return nil
}

// GetRecent returns up to n of the most recent records, newest first.
func (s *AuditStore) GetRecent(n int) []audit.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := s.next
	if s.filled {
		size = recentCapacity
	}
	if n > size {
		n = size
	}
	if n <= 0 {
		return nil
	}

	out := make([]audit.Record, 0, n)
	for i := 1; i <= n; i++ {
		idx := (s.next - i + recentCapacity) % recentCapacity
		out = append(out, s.recent[idx])
	}
	return out
}

// Close closes the underlying file, if any.
func (s *AuditStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
