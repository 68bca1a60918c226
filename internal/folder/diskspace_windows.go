//go:build windows

package folder

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/sys/windows"
)

// FreeSpace returns the bytes available to the caller on the volume holding path
func FreeSpace(path string) (int64, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return -1, err
	}

	var free, total, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(p, &free, &total, &totalFree); err != nil {
		return -1, fmt.Errorf("failed to query free space of %s: %w", path, err)
	}
	return int64(free), nil
}

// DeviceID identifies the volume of path by its drive letter
func DeviceID(path string) (uint64, error) {
	volume := strings.ToUpper(filepath.VolumeName(path))
	if volume == "" {
		return 0, nil
	}
	return uint64(volume[0]), nil
}
