package upload

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Finalize verifies that every declared chunk arrived, concatenates the
// payloads in ascending index order into a single artifact, and removes the
// session and its chunk storage. A second call for the same session returns
// ErrSessionNotFound because the first call consumed it.
func (s *Store) Finalize(sessionID string) (string, error) {
	if err := validateSessionID(sessionID); err != nil {
		return "", err
	}

	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %q", ErrSessionNotFound, sessionID)
	}
	if missing := missingIndices(sess); len(missing) > 0 {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: session %q received %d of %d chunks, missing %v",
			ErrIncompleteUpload, sessionID, len(sess.received), sess.total, missing)
	}
	// Consume the session before touching disk so a concurrent Finalize
	// observes SessionNotFound instead of racing the assembly.
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	// Chunk storage goes away on every exit path once the session has been
	// consumed; re-upload is the only recovery.
	defer os.RemoveAll(s.sessionDir(sessionID))

	artifact := filepath.Join(s.baseDir, sessionID+".reassembled")
	if err := assemble(artifact, sess); err != nil {
		os.Remove(artifact)
		return "", err
	}
	return artifact, nil
}

// RemoveSession discards a session and its chunks without assembling them.
// Unknown ids are a no-op.
func (s *Store) RemoveSession(sessionID string) {
	if err := validateSessionID(sessionID); err != nil {
		return
	}
	s.mu.Lock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	if ok {
		os.RemoveAll(s.sessionDir(sessionID))
	}
}

func assemble(artifact string, sess *session) error {
	out, err := os.Create(artifact)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	defer out.Close()

	indices := make([]int, 0, len(sess.received))
	for idx := range sess.received {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	for _, idx := range indices {
		if err := appendChunk(out, sess.received[idx]); err != nil {
			return fmt.Errorf("chunk %d: %w", idx, err)
		}
	}
	if err := out.Sync(); err != nil {
		return fmt.Errorf("sync artifact: %w", err)
	}
	return nil
}

func appendChunk(out io.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()
	_, err = io.Copy(out, in)
	return err
}

func missingIndices(sess *session) []int {
	var missing []int
	for i := 0; i < sess.total; i++ {
		if _, ok := sess.received[i]; !ok {
			missing = append(missing, i)
		}
	}
	return missing
}
