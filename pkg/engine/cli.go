package engine

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/asadpanda/insteon-mqtt/pkg/cmd"
	"github.com/asadpanda/insteon-mqtt/pkg/invocation"
)

// CLI runs the builder through the docker command line client.
type CLI struct {
	binary string
	stdout io.Writer
	stderr io.Writer
}

func NewCLI(binary string) *CLI {
	return &CLI{binary: binary, stdout: os.Stdout, stderr: os.Stderr}
}

func (c *CLI) SetOutput(stdout, stderr io.Writer) *CLI {
	c.stdout = stdout
	c.stderr = stderr
	return c
}

// Command is the exact docker call Run would make.
func (c *CLI) Command(inv *invocation.Invocation) *cmd.Cmd {
	return cmd.New(c.binary).
		Arg(inv.DockerArgs()...).
		SetVerbose(true).
		SetOutput(c.stdout, c.stderr).
		PreInfo("Running " + inv.Image).
		PostInfo("Builder finished")
}

func (c *CLI) Run(ctx context.Context, inv *invocation.Invocation) (int, error) {
	err := c.Command(inv).Run(ctx)
	code, exited := cmd.ExitCode(err)
	if exited {
		log.Debug().Int("code", code).Str("engine", "cli").Msg("Builder exited")
		return code, nil
	}
	return code, err
}

func (c *CLI) Close() error {
	return nil
}
