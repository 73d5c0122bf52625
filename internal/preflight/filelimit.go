package preflight

import (
	"fmt"
	"syscall"
)

// MinFileDescriptors is the hard floor for the open-file limit.
const MinFileDescriptors = 1024

// fdsPerWorker is the descriptor headroom one crawl worker needs: request
// sockets across redirects, sqlite handles, snapshot files, and the
// browser websocket when the dynamic fetcher is in play.
const fdsPerWorker = 64

// CheckFileDescriptors checks the open-file limit against the configured
// crawl concurrency. Below the floor is a failure; above the floor but
// short of the concurrency-derived headroom is a warning.
func (c *Checker) CheckFileDescriptors(maxConcurrency int) CheckResult {
	result := CheckResult{
		Name:     "file_descriptors",
		Required: true,
	}

	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check file descriptor limit: %v", err)
		return result
	}

	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	wanted := uint64(maxConcurrency) * fdsPerWorker
	if wanted < MinFileDescriptors {
		wanted = MinFileDescriptors
	}

	current := rLimit.Cur
	result.Message = fmt.Sprintf("%d (want %d for %d crawl workers)", current, wanted, maxConcurrency)

	switch {
	case current < MinFileDescriptors:
		result.Status = StatusFail
		result.Details = fmt.Sprintf("Run 'ulimit -n %d' to raise the limit", wanted)
	case current < wanted:
		result.Status = StatusWarn
		result.Details = fmt.Sprintf("Run 'ulimit -n %d' or lower batch.max_concurrency", wanted)
	default:
		result.Status = StatusPass
	}
	return result
}
