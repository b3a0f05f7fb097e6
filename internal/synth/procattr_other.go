//go:build !windows

package synth

import "os/exec"

func hideConsole(_ *exec.Cmd) {}
