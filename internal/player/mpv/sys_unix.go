//go:build !windows

package mpv

import (
	"os/exec"
	"time"
)

func detach(*exec.Cmd) {}

// dialNamedPipe never succeeds; unix builds talk to mpv over a socket
func dialNamedPipe(string, time.Duration) bool {
	return false
}
