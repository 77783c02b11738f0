//go:build !unix

package adapter

import "os/exec"

// killGroupOnCancel keeps the default cancellation, which kills only cmd.
func killGroupOnCancel(_ *exec.Cmd) {}

func killGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}

	return cmd.Process.Kill()
}
