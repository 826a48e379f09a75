package upload

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// session tracks one in-flight chunked upload. The total declared by the
// first chunk is authoritative; received maps chunk index to its stored file.
type session struct {
	total    int
	received map[int]string
}

// Store accepts out-of-order chunk uploads grouped by session id and keeps
// their payloads on disk until the session is finalized.
type Store struct {
	baseDir string

	mu       sync.Mutex
	sessions map[string]*session
}

// Ack reports per-session progress after a chunk has been stored.
type Ack struct {
	SessionID string `json:"session_id"`
	Received  int    `json:"received"`
	Total     int    `json:"total"`
}

func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{
		baseDir:  baseDir,
		sessions: make(map[string]*session),
	}, nil
}

// PutChunk stores one chunk payload for the given session. The session is
// created implicitly on the first chunk; a duplicate index overwrites the
// previously stored payload.
func (s *Store) PutChunk(sessionID string, index, total int, payload io.Reader) (Ack, error) {
	if err := validateSessionID(sessionID); err != nil {
		return Ack{}, err
	}
	if total < 1 {
		return Ack{}, fmt.Errorf("%w: total chunk count %d must be at least 1", ErrProtocolViolation, total)
	}
	if index < 0 || index >= total {
		return Ack{}, fmt.Errorf("%w: chunk index %d out of range [0,%d)", ErrProtocolViolation, index, total)
	}

	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		if err := os.MkdirAll(s.sessionDir(sessionID), 0o755); err != nil {
			s.mu.Unlock()
			return Ack{}, fmt.Errorf("create session dir: %w", err)
		}
		sess = &session{total: total, received: make(map[int]string)}
		s.sessions[sessionID] = sess
	} else if sess.total != total {
		s.mu.Unlock()
		return Ack{}, fmt.Errorf("%w: declared total %d disagrees with recorded total %d", ErrProtocolViolation, total, sess.total)
	}
	s.mu.Unlock()

	// Write outside the lock so concurrent chunks of one session do not
	// serialize on disk I/O. Distinct indices land in distinct files.
	path := filepath.Join(s.sessionDir(sessionID), strconv.Itoa(index)+".part")
	if err := writeChunk(path, payload); err != nil {
		return Ack{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// A concurrent Finalize may have consumed the session while the payload
	// was being written; treat the late chunk as a protocol violation.
	sess, ok = s.sessions[sessionID]
	if !ok {
		os.Remove(path)
		return Ack{}, fmt.Errorf("%w: session %q already finalized", ErrProtocolViolation, sessionID)
	}
	sess.received[index] = path
	return Ack{SessionID: sessionID, Received: len(sess.received), Total: sess.total}, nil
}

func writeChunk(path string, payload io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chunk file: %w", err)
	}
	if _, err := io.Copy(f, payload); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write chunk: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close chunk file: %w", err)
	}
	return nil
}

func (s *Store) sessionDir(sessionID string) string {
	return filepath.Join(s.baseDir, sessionID)
}

// validateSessionID rejects ids that would escape the upload directory.
func validateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty session id", ErrProtocolViolation)
	}
	if strings.ContainsAny(id, "/\\") || id != filepath.Base(id) || id == "." || id == ".." {
		return fmt.Errorf("%w: invalid session id %q", ErrProtocolViolation, id)
	}
	return nil
}
