package store

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Store owns the canonical on-disk document and the current in-memory
// snapshot. Readers call Current and never block; the two writers (the
// admin API and the config watcher) are serialized through mu around the
// persist+swap sequence.
type Store struct {
	path      string
	mu        sync.Mutex
	snap      atomic.Pointer[Snapshot]
	lastSaved atomic.Pointer[[32]byte]
}

// Open loads the canonical document at path, or falls back to the built-in
// default when the file is absent or unparsable. I/O failures other than
// "not exist" are returned: if the disk is unreadable at startup there is
// nothing sensible to serve.
func Open(path, bootstrapPassword string) (*Store, error) {
	s := &Store{path: path}

	doc, err := s.Load()
	switch {
	case err == nil:
	case errors.Is(err, ErrNoDocument):
		log.Info().Str("path", path).Msg("no routing document yet, starting from defaults")
		doc = DefaultDocument(bootstrapPassword)
	case IsValidation(err):
		log.Warn().Err(err).Str("path", path).
			Msg("routing document is malformed, starting from defaults (file left untouched)")
		doc = DefaultDocument(bootstrapPassword)
	default:
		return nil, err
	}

	snap, err := compile(doc)
	if err != nil {
		return nil, err
	}
	s.snap.Store(snap)
	return s, nil
}

// Path returns the canonical document path.
func (s *Store) Path() string {
	return s.path
}

// Current returns the live snapshot. Lock-free; safe from any goroutine.
func (s *Store) Current() *Snapshot {
	return s.snap.Load()
}

// Load parses and validates the canonical document. Malformed content
// yields a *ValidationError; the caller decides the fallback.
func (s *Store) Load() (*Document, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoDocument
		}
		return nil, fmt.Errorf("read document %s: %w", s.path, err)
	}
	return ParseDocument(raw)
}

// ParseDocument decodes and validates one document body.
func ParseDocument(raw []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		verr := &ValidationError{}
		verr.Addf("invalid JSON: %v", err)
		return nil, verr
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Save serializes the document and replaces the canonical file atomically
// (write to a temp file in the same directory, fsync, rename), so neither
// the watcher nor the external sync subsystem can observe a partial file.
// The SHA-256 of the written bytes is recorded so the watcher can tell the
// process's own writes from external ones.
func (s *Store) Save(doc *Document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	raw = append(raw, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp document: %w", err)
	}
	tmpName := tmp.Name()

	if err := writeAndSync(tmp, raw); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	// Document carries the admin credential; keep it out of other users' reach.
	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod temp document: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace document %s: %w", s.path, err)
	}

	sum := sha256.Sum256(raw)
	s.lastSaved.Store(&sum)
	return nil
}

func writeAndSync(f *os.File, raw []byte) error {
	if _, err := f.Write(raw); err != nil {
		_ = f.Close()
		return fmt.Errorf("write temp document: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync temp document: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp document: %w", err)
	}
	return nil
}

// WroteSum reports whether sum matches the last bytes this process saved.
// Used by the watcher to suppress reloads of our own writes.
func (s *Store) WroteSum(sum [32]byte) bool {
	last := s.lastSaved.Load()
	return last != nil && *last == sum
}

// Replace validates doc, persists it, and swaps the snapshot, all-or-nothing.
// The admin credential in doc is ignored: the credential only changes via
// Rotate, never as a side effect of a table write.
func (s *Store) Replace(doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc = doc.Clone()
	doc.AdminPassword = s.Current().doc.AdminPassword

	if err := doc.Validate(); err != nil {
		return err
	}
	snap, err := compile(doc)
	if err != nil {
		return err
	}
	if err := s.Save(doc); err != nil {
		return err
	}
	s.snap.Store(snap)
	return nil
}

// Rotate replaces the admin credential after a constant-time check of the
// current one. Effective for the very next request: there is no session
// state to invalidate.
func (s *Store) Rotate(oldPassword, newPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := sha256.Sum256([]byte(s.Current().doc.AdminPassword))
	presented := sha256.Sum256([]byte(oldPassword))
	if subtle.ConstantTimeCompare(presented[:], current[:]) != 1 {
		return ErrBadCredential
	}

	doc := s.Current().doc.Clone()
	doc.AdminPassword = newPassword

	snap, err := compile(doc)
	if err != nil {
		return err
	}
	if err := s.Save(doc); err != nil {
		return err
	}
	s.snap.Store(snap)
	return nil
}

// Reload re-reads the canonical document and swaps the snapshot on success.
// On failure the previous snapshot stays live; the watcher logs and retries
// on its next tick.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.Load()
	if err != nil {
		return err
	}
	snap, err := compile(doc)
	if err != nil {
		return err
	}
	s.snap.Store(snap)
	return nil
}

// RawDocument returns the persisted bytes verbatim, for the admin read
// endpoint. When nothing was ever saved it falls back to serializing the
// current (bootstrapped) snapshot.
func (s *Store) RawDocument() ([]byte, error) {
	raw, err := os.ReadFile(s.path)
	if err == nil {
		return raw, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read document %s: %w", s.path, err)
	}

	raw, err = json.MarshalIndent(s.Current().doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return append(raw, '\n'), nil
}
