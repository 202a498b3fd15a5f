// Package invocation describes the single add-on builder call hassbuild makes:
// which image runs, what it mounts and which arguments its entry point gets.
package invocation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"

	"github.com/asadpanda/insteon-mqtt/pkg/config"
)

// Mount targets inside the builder container.
const (
	CredentialsTarget = "/root/.docker"
	SocketTarget      = "/var/run/docker.sock"
)

var ErrSocketUnavailable = errors.New("docker control socket unavailable")

type Invocation struct {
	Image          string
	Repository     string
	Branch         string
	All            bool
	Privileged     bool
	Remove         bool
	CredentialsDir string
	Socket         string
	ExtraArgs      []string
}

// From resolves a config into a validated Invocation. extra is appended to
// the builder arguments after the ones from the config file.
func From(cfg *config.Config, extra []string) (*Invocation, error) {
	image, err := TemplateString(cfg.Image, map[string]interface{}{
		"arch":       cfg.Arch,
		"repository": cfg.Repository,
		"branch":     cfg.Branch,
	})
	if err != nil {
		return nil, fmt.Errorf("templating image %q: %w", cfg.Image, err)
	}

	credentials, err := ExpandHome(cfg.Credentials)
	if err != nil {
		return nil, err
	}

	inv := &Invocation{
		Image:          strings.TrimSpace(image),
		Repository:     cfg.Repository,
		Branch:         cfg.Branch,
		All:            cfg.All,
		Privileged:     cfg.Privileged,
		Remove:         cfg.Remove,
		CredentialsDir: credentials,
		Socket:         cfg.Socket,
	}
	inv.ExtraArgs = append(inv.ExtraArgs, cfg.Args...)
	inv.ExtraArgs = append(inv.ExtraArgs, extra...)

	if err := inv.Validate(); err != nil {
		return nil, err
	}
	return inv, nil
}

// Validate reports all missing fields at once.
func (i *Invocation) Validate() error {
	var result *multierror.Error
	if i.Image == "" {
		result = multierror.Append(result, errors.New("builder image is not set"))
	}
	if i.Repository == "" {
		result = multierror.Append(result, errors.New("repository is not set"))
	}
	if i.Branch == "" {
		result = multierror.Append(result, errors.New("branch is not set"))
	}
	if i.CredentialsDir == "" {
		result = multierror.Append(result, errors.New("credentials directory is not set"))
	}
	if i.Socket == "" {
		result = multierror.Append(result, errors.New("docker socket is not set"))
	}
	return result.ErrorOrNil()
}

// BuilderArgs is the argument vector handed to the builder entry point.
func (i *Invocation) BuilderArgs() []string {
	args := []string{}
	if i.All {
		args = append(args, "--all")
	}
	args = append(args, "-r", i.Repository, "-b", i.Branch)
	return append(args, i.ExtraArgs...)
}

// Binds lists the host mounts in docker "-v" syntax. The socket is read-only.
func (i *Invocation) Binds() []string {
	return []string{
		i.CredentialsDir + ":" + CredentialsTarget,
		i.Socket + ":" + SocketTarget + ":ro",
	}
}

// DockerArgs is the full "docker" command line without the binary name.
func (i *Invocation) DockerArgs() []string {
	args := []string{"run"}
	if i.Remove {
		args = append(args, "--rm")
	}
	if i.Privileged {
		args = append(args, "--privileged")
	}
	for _, bind := range i.Binds() {
		args = append(args, "-v", bind)
	}
	args = append(args, i.Image)
	return append(args, i.BuilderArgs()...)
}

// Preflight checks the host paths the builder mounts. A missing socket is
// fatal, a missing credentials directory is created by docker on bind.
func (i *Invocation) Preflight() error {
	fi, err := os.Stat(i.Socket)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSocketUnavailable, err)
	}
	if fi.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("%w: %s is not a socket", ErrSocketUnavailable, i.Socket)
	}

	if _, err := os.Stat(i.CredentialsDir); err != nil {
		log.Warn().Err(err).Str("dir", i.CredentialsDir).Msg("Docker credentials directory not accessible, registry logins will be missing")
	}
	return nil
}

// ExpandHome replaces a leading "~" with the current user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expanding %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
