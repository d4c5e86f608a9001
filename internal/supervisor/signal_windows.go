//go:build windows

package supervisor

import (
	"os"
	"os/exec"
)

func configure(cmd *exec.Cmd) {}

// Windows has no SIGTERM; termination is a kill.
func terminate(p *os.Process) error {
	return p.Kill()
}

func kill(p *os.Process) error {
	return p.Kill()
}
