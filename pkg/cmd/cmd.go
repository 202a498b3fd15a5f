package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// ExitNotFound is what a shell returns when the binary cannot be found.
const ExitNotFound = 127

// InterruptGrace is how long a cancelled command gets after SIGINT before it is killed.
var InterruptGrace = 10 * time.Second

type Cmd struct {
	cmd      string
	args     []string
	verbose  bool
	preText  string
	postText string
	stdout   io.Writer
	stderr   io.Writer
	output   string
}

func New(c string) *Cmd {
	return &Cmd{
		cmd:    c,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

func (c *Cmd) Equal(cmd *Cmd) bool {
	return c.String() == cmd.String()
}

func (c *Cmd) Arg(args ...string) *Cmd {
	c.args = append(c.args, args...)
	return c
}

// SetVerbose passes the command output through instead of capturing it.
func (c *Cmd) SetVerbose(verbosity bool) *Cmd {
	c.verbose = verbosity
	return c
}

// SetOutput replaces the writers used in verbose mode.
func (c *Cmd) SetOutput(stdout, stderr io.Writer) *Cmd {
	c.stdout = stdout
	c.stderr = stderr
	return c
}

func (c *Cmd) PreInfo(msg string) *Cmd {
	c.preText = msg
	return c
}

func (c *Cmd) PostInfo(msg string) *Cmd {
	c.postText = msg
	return c
}

// Output returns whatever was captured by the last non-verbose Run.
func (c *Cmd) Output() string {
	return c.output
}

// Run executes the command and blocks until it exits. A non-zero exit of the
// child is reported as an *exec.ExitError; use ExitCode to get the status.
func (c *Cmd) Run(ctx context.Context) error {
	if c.cmd == "" {
		return errors.New("command not set")
	}
	if c.preText != "" {
		log.Info().Msg(c.preText)
	}

	cmd := exec.CommandContext(ctx, c.cmd, c.args...)
	// docker run proxies SIGINT to the container, SIGKILL would orphan it
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = InterruptGrace

	var b bytes.Buffer
	if c.verbose {
		cmd.Stdout = c.stdout
		cmd.Stderr = c.stderr
	} else {
		cmd.Stdout = &b
		cmd.Stderr = &b
	}

	log.Debug().Str("cmd", c.cmd).Strs("args", c.args).Msg("Running")
	err := cmd.Run()
	c.output = b.String()

	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			log.Warn().Str("cmd", c.cmd).Msg("Command was cancelled")
		} else if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Warn().Str("cmd", c.cmd).Msg("Command timed out")
		}
		if err == nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	}

	if err != nil {
		log.Debug().Err(err).Str("cmd", c.cmd).Strs("args", c.args).Msg("Command failed")
		if !c.verbose && c.output != "" {
			log.Error().Msg(c.output)
		}
		return err
	}

	if c.postText != "" {
		log.Info().Msg(c.postText)
	}
	return nil
}

func (c *Cmd) String() string {
	return strings.Trim(fmt.Sprintf("%s %s", c.cmd, strings.Join(c.args, " ")), " ")
}

// ExitCode maps an error returned by Run to a process exit status.
// ok is false when the error did not come from the child exiting.
func ExitCode(err error) (code int, ok bool) {
	if err == nil {
		return 0, true
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code, true
		}
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal()), true
		}
		return 1, true
	}
	if errors.Is(err, exec.ErrNotFound) {
		return ExitNotFound, false
	}
	return 1, false
}
