// Copyright 2020 Dan Julio
// This file is part of firecam.

package store

import (
	"os"
)

// FileBacking implements Backing against a single flat file, standing
// in for the battery-backed RTC SRAM chip the original firmware
// targeted (out of scope here; see the Backing doc comment). The
// whole file is read or written on each call, which is appropriate
// for a local file but would defeat the purpose of the partial-region
// writes on a real I2C-attached chip.
type FileBacking struct {
	path string
}

// NewFileBacking returns a Backing that persists to path, creating it
// on first write if it does not exist.
func NewFileBacking(path string) *FileBacking {
	return &FileBacking{path: path}
}

func (f *FileBacking) ReadAll() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (f *FileBacking) WriteAt(offset int, data []byte) error {
	buf := make([]byte, sramSize)
	existing, err := os.ReadFile(f.path)
	if err == nil && len(existing) == sramSize {
		copy(buf, existing)
	}
	copy(buf[offset:], data)
	return os.WriteFile(f.path, buf, 0o600)
}
