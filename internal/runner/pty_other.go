//go:build !unix

package runner

import (
	"context"
	"os/exec"

	"github.com/rotisserie/eris"
)

func (r *Runner) attempt(ctx context.Context, inv Invocation, dir string) (int, *tailBuffer, error) {
	return -1, nil, eris.New("pseudo-terminal execution requires a unix host")
}

// Spawn starts argv without waiting for it.
func (r *Runner) Spawn(argv ...string) error {
	if len(argv) == 0 {
		return eris.New("empty argv")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = r.Workspace
	if err := cmd.Start(); err != nil {
		return eris.Wrapf(err, "starting %s", argv[0])
	}
	return cmd.Process.Release()
}

func signalOf(err *exec.ExitError) (int, bool) {
	return 0, false
}
