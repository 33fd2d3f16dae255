//go:build !windows

package gateway

import "os/exec"

func hideConsole(cmd *exec.Cmd) {}
