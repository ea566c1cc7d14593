package automation

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// DefaultScriptTimeout bounds one osascript invocation. AppleScript calls
// into System Events can hang indefinitely when the automation permission
// prompt is pending.
const DefaultScriptTimeout = 30 * time.Second

// Runner executes one OS scripting snippet and reports the outcome as a
// success flag plus detail text. Expected failures (timeout, non-zero exit)
// come back as ok=false; Runner never returns an error value because there
// is no expected condition that should abort the caller outright.
type Runner interface {
	Run(ctx context.Context, script string) (ok bool, detail string)
	Available() error
}

// OsascriptRunner runs AppleScript snippets through /usr/bin/osascript.
type OsascriptRunner struct {
	Timeout time.Duration
}

// NewRunner returns a runner with the default script timeout.
func NewRunner(timeout time.Duration) *OsascriptRunner {
	if timeout <= 0 {
		timeout = DefaultScriptTimeout
	}
	return &OsascriptRunner{Timeout: timeout}
}

// Available checks that the scripting mechanism can be used at all.
func (r *OsascriptRunner) Available() error {
	if runtime.GOOS != "darwin" {
		return ErrScriptingUnavailable
	}
	if _, err := exec.LookPath("osascript"); err != nil {
		return ErrScriptingUnavailable
	}
	return nil
}

// Run executes one script. The context bounds the call in addition to the
// runner's own timeout.
func (r *OsascriptRunner) Run(ctx context.Context, script string) (bool, string) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	output, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			slog.Debug("osascript timed out", "timeout", r.Timeout)
			return false, "timeout"
		}
		detail := err.Error()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			detail = strings.TrimSpace(string(exitErr.Stderr))
		}
		slog.Debug("osascript failed", "error", detail)
		return false, detail
	}
	return true, strings.TrimSpace(string(output))
}

// escapeScriptString makes a Go string safe inside AppleScript double
// quotes.
func escapeScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
