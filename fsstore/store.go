// Package fsstore backs the token.Storage and token.FlagStore interfaces with
// a plain directory, standing in for the wear-levelled flash partition and
// non-volatile store of the hardware.
//
// A flag is a one-byte file named <flag>.flag; a ".mounted" marker file makes
// an unclean shutdown visible on the next boot.
package fsstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/openpgp-hw/tokencore/logger"
	"github.com/openpgp-hw/tokencore/token"
)

const mountMarker = ".mounted"

// Store is a directory-backed Storage and FlagStore.
type Store struct {
	dir     string
	logger  logger.Logger
	mounted atomic.Bool
}

var (
	_ token.Storage   = (*Store)(nil)
	_ token.FlagStore = (*Store)(nil)
)

// New creates a Store rooted at dir. The directory is created on Mount.
func New(dir string, l logger.Logger) *Store {
	if l == nil {
		l = logger.GetLogger()
	}

	return &Store{dir: dir, logger: l}
}

// Mount ensures the store directory exists and writes the mount marker.
func (s *Store) Mount() error {
	s.logger.Info("mounting flag store", "dir", s.dir)

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	marker := filepath.Join(s.dir, mountMarker)
	if _, err := os.Stat(marker); err == nil {
		s.logger.Warn("store was not unmounted cleanly", "dir", s.dir)
	}

	if err := os.WriteFile(marker, nil, 0o644); err != nil {
		return fmt.Errorf("write mount marker: %w", err)
	}

	s.mounted.Store(true)

	return nil
}

// Unmount removes the mount marker.
func (s *Store) Unmount() {
	s.logger.Info("unmounting flag store", "dir", s.dir)

	if err := os.Remove(filepath.Join(s.dir, mountMarker)); err != nil && !os.IsNotExist(err) {
		s.logger.Error("failed to remove mount marker", "error", err)
	}

	s.mounted.Store(false)
}

// ReadFlag returns the value of the named flag, or token.ErrFlagAbsent when
// it has never been written or has been erased.
func (s *Store) ReadFlag(name string) (bool, error) {
	if !s.mounted.Load() {
		return false, fmt.Errorf("flag store not mounted")
	}

	data, err := os.ReadFile(s.flagPath(name))
	if os.IsNotExist(err) {
		return false, token.ErrFlagAbsent
	}
	if err != nil {
		return false, fmt.Errorf("read flag %s: %w", name, err)
	}

	return len(data) > 0 && data[0] == 1, nil
}

// WriteFlag durably records the named flag. It is not part of the core's
// FlagStore contract; the state bring-up uses it to persist the lifecycle
// flag after first-time initialization.
func (s *Store) WriteFlag(name string, value bool) error {
	if !s.mounted.Load() {
		return fmt.Errorf("flag store not mounted")
	}

	b := byte(0)
	if value {
		b = 1
	}

	if err := os.WriteFile(s.flagPath(name), []byte{b}, 0o644); err != nil {
		return fmt.Errorf("write flag %s: %w", name, err)
	}

	return nil
}

// EraseFlag removes the named flag. Erasing an absent flag is not an error.
func (s *Store) EraseFlag(name string) error {
	if !s.mounted.Load() {
		return fmt.Errorf("flag store not mounted")
	}

	if err := os.Remove(s.flagPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("erase flag %s: %w", name, err)
	}

	return nil
}

func (s *Store) flagPath(name string) string {
	return filepath.Join(s.dir, name+".flag")
}
