//go:build !unix

package supervisor

import "os/exec"

func setProcAttr(_ *exec.Cmd) {}

// Windows has no SIGTERM for console processes; both paths kill.
func signalTerm(cmd *exec.Cmd) error { return cmd.Process.Kill() }

func signalKill(cmd *exec.Cmd) error { return cmd.Process.Kill() }
