package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	apperr "websearch/internal/errors"
)

const lockFile = "index.lock"

// indexLock guards the index directory against concurrent writer processes.
// The advisory flock is the actual exclusion mechanism; the PID written next
// to it is diagnostic only.
type indexLock struct {
	fl      *flock.Flock
	pidPath string
}

// acquireIndexLock takes an exclusive non-blocking lock on dir. A held lock
// surfaces as lock_conflict with the owner PID when readable.
func acquireIndexLock(dir string) (*indexLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.KindIO, "create index directory", err)
	}

	fl := flock.New(filepath.Join(dir, lockFile))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, "acquire index lock", err)
	}
	if !locked {
		e := apperr.New(apperr.KindLockConflict, "index is locked by another process")
		if pid := readLockPID(filepath.Join(dir, lockFile+".pid")); pid != "" {
			e = e.WithDetail("pid", pid)
		}
		return nil, e
	}

	pidPath := filepath.Join(dir, lockFile+".pid")
	_ = os.WriteFile(pidPath, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644)

	return &indexLock{fl: fl, pidPath: pidPath}, nil
}

func readLockPID(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// release drops the lock and removes the PID marker.
func (l *indexLock) release() error {
	_ = os.Remove(l.pidPath)
	return l.fl.Unlock()
}
