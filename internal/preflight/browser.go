package preflight

import (
	"os"
	"os/exec"
)

// browserCandidates are the executables chromedp can drive, in preference
// order.
var browserCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"headless-shell",
	"headless_shell",
}

// CheckBrowser checks whether a Chrome-compatible browser is available for
// dynamic fetch mode.
func (c *Checker) CheckBrowser() CheckResult {
	result := CheckResult{
		Name:     "browser",
		Required: false, // static and auto-degraded fetches still work
	}

	if path := os.Getenv("CHROME_PATH"); path != "" {
		if _, err := os.Stat(path); err == nil {
			result.Status = StatusPass
			result.Message = "found via CHROME_PATH"
			result.Details = path
			return result
		}
	}

	for _, name := range browserCandidates {
		if path, err := exec.LookPath(name); err == nil {
			result.Status = StatusPass
			result.Message = "found " + name
			result.Details = path
			return result
		}
	}

	result.Status = StatusWarn
	result.Message = "no Chrome-compatible browser found"
	result.Details = "Dynamic fetch mode needs Chrome or Chromium on PATH"
	return result
}
