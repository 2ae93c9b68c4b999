// Package runlock serializes transition runs per workstation. The record
// store offers no locking, so two overlapping runs on one machine could
// interleave their file copies; a flock-guarded pid file keeps them apart.
package runlock

import (
	"fmt"
	"os"
	"syscall"
)

type RunLock struct {
	path string
	file *os.File
}

func New(path string) *RunLock {
	return &RunLock{path: path}
}

// TryAcquire takes the lock without blocking. It fails when another run
// holds it; the pid of the holder is in the lock file.
func (l *RunLock) TryAcquire() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		return fmt.Errorf("another transition run is in progress: %w", err)
	}

	if err := f.Truncate(0); err != nil {
		l.drop(f)
		return fmt.Errorf("truncate lock file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		l.drop(f)
		return fmt.Errorf("seek lock file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		l.drop(f)
		return fmt.Errorf("write pid: %w", err)
	}
	if err := f.Sync(); err != nil {
		l.drop(f)
		return fmt.Errorf("sync lock file: %w", err)
	}

	l.file = f
	return nil
}

func (l *RunLock) Release() error {
	if l.file == nil {
		return nil
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		_ = l.file.Close()
		return fmt.Errorf("release lock: %w", err)
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close lock file: %w", err)
	}
	_ = os.Remove(l.path)
	l.file = nil
	return nil
}

func (l *RunLock) drop(f *os.File) {
	_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	_ = f.Close()
}
