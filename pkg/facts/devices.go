// Package facts bridges OS-level observations into the engine. The
// platform helper (menu-bar shell) owns the real CoreAudio/EventKit
// enumeration and mirrors it into small JSON files; these providers read
// them back. Tests and headless setups point them at fixture files.
package facts

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xpanvictor/presenced/internal/domains/call"
)

// FileDeviceLister reads audio input device facts from a JSON file.
type FileDeviceLister struct {
	Path string
}

func NewFileDeviceLister(path string) *FileDeviceLister {
	return &FileDeviceLister{Path: path}
}

// ListInputDevices implements call.DeviceLister. A missing file means the
// helper has not published yet: no devices, no error.
func (f *FileDeviceLister) ListInputDevices() ([]call.Device, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read device facts: %w", err)
	}
	var devices []call.Device
	if err := json.Unmarshal(data, &devices); err != nil {
		return nil, fmt.Errorf("failed to decode device facts: %w", err)
	}
	return devices, nil
}
