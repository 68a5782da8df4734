//go:build unix

package runner

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/rotisserie/eris"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// attempt starts the command once on a fresh pseudo-terminal and streams
// its output until the child has exited and the terminal has nothing left
// to read. Both pty descriptors are closed before it returns.
func (r *Runner) attempt(ctx context.Context, inv Invocation, dir string) (int, *tailBuffer, error) {
	if err := ctx.Err(); err != nil {
		return -1, nil, err
	}

	ptmx, tty, err := pty.Open()
	if err != nil {
		return -1, nil, eris.Wrap(err, "allocating pseudo-terminal")
	}
	defer ptmx.Close()
	ttyOpen := true
	defer func() {
		if ttyOpen {
			_ = tty.Close()
		}
	}()
	r.sizeTerminal(ptmx)

	cmd := exec.Command(inv.Argv[0], inv.Argv[1:]...)
	cmd.Dir = dir
	cmd.Env = environ(inv.Env)
	cmd.Stdout = tty
	cmd.Stderr = tty
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
		Ctty:    1, // the child's stdout is the terminal
	}

	if err := cmd.Start(); err != nil {
		return -1, nil, eris.Wrapf(err, "executing %s", inv.Argv[0])
	}
	// The child holds its own copy; ours must go so the terminal hangs up
	// when the child exits.
	_ = tty.Close()
	ttyOpen = false

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	transcript := newTailBuffer(r.maxOutput())
	sink := transform.NewWriter(teeWriter{r.stdout(), transcript}, unicode.UTF8.NewDecoder())

	fd := int(ptmx.Fd())
	buf := make([]byte, 32*1024)
	var (
		exited  bool
		drained bool
		waitErr error
	)
	for {
		if !exited {
			select {
			case waitErr = <-waitCh:
				exited = true
			case <-ctx.Done():
				r.terminate(cmd)
				<-waitCh
				_ = sink.Close()
				return -1, transcript, ctx.Err()
			default:
			}
		}

		if drained {
			if exited {
				break
			}
			// Terminal hung up while the child lives on; nothing more
			// can arrive, so only its exit matters.
			select {
			case waitErr = <-waitCh:
				exited = true
			case <-ctx.Done():
				r.terminate(cmd)
				<-waitCh
				_ = sink.Close()
				return -1, transcript, ctx.Err()
			}
			continue
		}

		ready, err := pollReadable(fd, r.pollInterval())
		if err != nil {
			if !exited {
				r.terminate(cmd)
				<-waitCh
			}
			_ = sink.Close()
			return -1, transcript, eris.Wrap(err, "polling pseudo-terminal")
		}
		if !ready {
			if exited {
				break
			}
			continue
		}

		n, err := unix.Read(fd, buf)
		if n > 0 {
			_, _ = sink.Write(buf[:n])
		}
		switch {
		case err == nil && n == 0:
			drained = true
		case err == nil, errors.Is(err, unix.EINTR), errors.Is(err, unix.EAGAIN):
		default:
			// EIO once every writer has closed the subordinate side.
			drained = true
		}
	}

	_ = sink.Close()
	return exitCode(waitErr), transcript, nil
}

// pollReadable waits up to timeout for fd to become readable or hang up.
func pollReadable(fd int, timeout time.Duration) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, int(timeout/time.Millisecond))
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return false, err
		}
		return n > 0 && fds[0].Revents != 0, nil
	}
}

// sizeTerminal copies the operator's terminal size so tools format their
// output for the real width; otherwise a wide default avoids wrapping.
func (r *Runner) sizeTerminal(ptmx *os.File) {
	size := &pty.Winsize{Rows: 50, Cols: 160}
	if f, ok := r.stdout().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if w, h, err := term.GetSize(int(f.Fd())); err == nil && w > 0 && h > 0 {
			size = &pty.Winsize{Rows: uint16(h), Cols: uint16(w)}
		}
	}
	if err := pty.Setsize(ptmx, size); err != nil {
		r.Log.Debug().Err(err).Msg("setting pseudo-terminal size")
	}
}

// terminate kills the child together with everything it spawned.
func (r *Runner) terminate(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	killTree(pid)
	// The child leads its own session, so its process group shares its pid.
	_ = syscall.Kill(-pid, syscall.SIGKILL)
	_ = cmd.Process.Kill()
	r.Log.Debug().Int("pid", pid).Msg("terminated child process")
}

// Spawn starts argv detached from this process, discarding its output.
// Used for long-lived helpers such as emulators.
func (r *Runner) Spawn(argv ...string) error {
	if len(argv) == 0 {
		return eris.New("empty argv")
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = r.Workspace
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return eris.Wrapf(err, "starting %s", argv[0])
	}
	r.Log.Debug().Int("pid", cmd.Process.Pid).Strs("argv", argv).Msg("spawned detached process")
	return cmd.Process.Release()
}

func signalOf(err *exec.ExitError) (int, bool) {
	status, ok := err.Sys().(syscall.WaitStatus)
	if !ok || !status.Signaled() {
		return 0, false
	}
	return int(status.Signal()), true
}

// teeWriter writes to both destinations regardless of the first one's
// errors, so a closed console never loses the transcript.
type teeWriter struct {
	echo       io.Writer
	transcript *tailBuffer
}

func (t teeWriter) Write(p []byte) (int, error) {
	_, _ = t.echo.Write(p)
	return t.transcript.Write(p)
}
