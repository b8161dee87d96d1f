//go:build !unix

package engine

import "os/exec"

// configureProcessGroup keeps exec's default of killing the direct child.
func configureProcessGroup(cmd *exec.Cmd) {}
