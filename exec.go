package prototype

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/u-root/u-root/pkg/termios"
)

// Runner executes an external command. Implementations must return an error
// when the command exits non-zero.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (ExecResult, error)
}

type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ExitError is returned when a command ran but exited non-zero.
type ExitError struct {
	Command  []string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Command[0], e.ExitCode)
	if tail := lastLine(e.Stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

// maxCapturedOutput bounds how much of a command's output is kept in an
// ExecResult. Only the tail is retained.
const maxCapturedOutput = 64 * 1024

// Executor runs commands on the host, routing them through sudo according to
// its PrivilegeMode. Output is streamed to Out when set; otherwise stdout is
// captured. The tail of stderr is always captured.
type Executor struct {
	Mode PrivilegeMode
	Out  io.Writer
}

func NewExecutor(mode PrivilegeMode, out io.Writer) *Executor {
	return &Executor{Mode: mode, Out: out}
}

func (e *Executor) Run(ctx context.Context, name string, args ...string) (ExecResult, error) {
	path, argv := e.Mode.wrap(name, args)

	logrus.Debugf("running %s %s", path, strings.Join(argv, " "))

	stdout := &tailBuffer{limit: maxCapturedOutput}
	stderr := &tailBuffer{limit: maxCapturedOutput}

	cmd := exec.CommandContext(ctx, path, argv...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if e.Out != nil {
		cmd.Stdout = e.Out
		cmd.Stderr = io.MultiWriter(stderr, e.Out)
	}

	err := cmd.Run()

	result := ExecResult{
		ExitCode: cmd.ProcessState.ExitCode(),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return result, &ExitError{
				Command:  append([]string{path}, argv...),
				ExitCode: exitErr.ExitCode(),
				Stderr:   result.Stderr,
			}
		}
		return result, errors.Wrapf(err, "run %s", name)
	}

	return result, nil
}

// limitTerminalWidth caps the columns of stdout; CI runners advertise a
// huge width and progress output from the builder fills it with whitespace.
func limitTerminalWidth(cols uint16) {
	ws, err := termios.GetWinSize(os.Stdout.Fd())
	if err != nil {
		return
	}

	ws.Col = cols

	err = termios.SetWinSize(os.Stdout.Fd(), ws)
	if err != nil {
		logrus.Warn("failed to set window size:", err)
	}
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if n >= t.limit {
		p = p[n-t.limit:]
		t.buf = t.buf[:0]
	}

	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}

	return n, nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
