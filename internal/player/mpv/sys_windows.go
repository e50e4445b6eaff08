//go:build windows

package mpv

import (
	"os/exec"
	"syscall"
	"time"

	"github.com/Microsoft/go-winio"
)

// detach puts mpv in its own process group so console Ctrl+C reaches only us
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

func dialNamedPipe(path string, timeout time.Duration) bool {
	conn, err := winio.DialPipe(path, &timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
