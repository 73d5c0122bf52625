package preflight

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"syscall"
)

// MinDiskSpaceBytes is the free-space floor below which the vector cache
// and its sqlite records cannot grow safely (100MB).
const MinDiskSpaceBytes = 100 * 1024 * 1024

// CheckDiskSpace checks free space on the volume holding the data
// directory, sized against the current index. Snapshot saves write a full
// copy next to the old one before renaming, so free space below twice the
// index size is a warning even above the floor.
func (c *Checker) CheckDiskSpace(dataDir string) CheckResult {
	result := CheckResult{
		Name:     "disk_space",
		Required: true,
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(dataDir, &stat); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check disk space: %v", err)
		return result
	}

	free := stat.Bavail * uint64(stat.Bsize)
	indexSize := dirSize(filepath.Join(dataDir, "index"))

	result.Message = fmt.Sprintf("%s free, index uses %s (minimum free: %s)",
		formatBytes(free), formatBytes(indexSize), formatBytes(MinDiskSpaceBytes))

	switch {
	case free < MinDiskSpaceBytes:
		result.Status = StatusFail
		result.Details = "Free up space or point --data-dir at a larger volume"
	case indexSize > 0 && free < 2*indexSize:
		result.Status = StatusWarn
		result.Details = "Free space is below twice the index size; snapshot saves may fail"
	default:
		result.Status = StatusPass
	}
	return result
}

// dirSize sums regular file sizes under root; a missing root counts as 0.
func dirSize(root string) uint64 {
	var total uint64
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += uint64(info.Size())
		}
		return nil
	})
	return total
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
		TB = 1024 * GB
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/TB)
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
