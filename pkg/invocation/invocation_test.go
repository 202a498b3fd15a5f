package invocation_test

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asadpanda/insteon-mqtt/pkg/config"
	"github.com/asadpanda/insteon-mqtt/pkg/invocation"
)

func defaultInvocation(t *testing.T) *invocation.Invocation {
	t.Helper()
	t.Setenv("HOME", "/home/builder")

	inv, err := invocation.From(config.Default(), nil)
	require.NoError(t, err)
	return inv
}

func TestDefaultBuilderArgs(t *testing.T) {
	inv := defaultInvocation(t)

	expected := []string{"--all", "-r", "https://github.com/asadpanda/insteon-mqtt", "-b", "master"}
	// same vector on every call
	for i := 0; i < 3; i++ {
		assert.Equal(t, expected, inv.BuilderArgs())
	}
}

func TestDefaultDockerArgs(t *testing.T) {
	inv := defaultInvocation(t)

	assert.Equal(t, "homeassistant/amd64-builder", inv.Image)
	assert.Equal(t, []string{
		"run", "--rm", "--privileged",
		"-v", "/home/builder/.docker:/root/.docker",
		"-v", "/var/run/docker.sock:/var/run/docker.sock:ro",
		"homeassistant/amd64-builder",
		"--all", "-r", "https://github.com/asadpanda/insteon-mqtt", "-b", "master",
	}, inv.DockerArgs())
}

func TestDockerArgsWithOverrides(t *testing.T) {
	cfg := config.Default()
	cfg.Arch = "aarch64"
	cfg.All = false
	cfg.Privileged = false
	cfg.Remove = false
	cfg.Credentials = "/srv/creds"
	cfg.Socket = "/run/user/1000/docker.sock"
	cfg.Args = []string{"--test"}

	inv, err := invocation.From(cfg, []string{"--no-cache"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"run",
		"-v", "/srv/creds:/root/.docker",
		"-v", "/run/user/1000/docker.sock:/var/run/docker.sock:ro",
		"homeassistant/aarch64-builder",
		"-r", "https://github.com/asadpanda/insteon-mqtt", "-b", "master",
		"--test", "--no-cache",
	}, inv.DockerArgs())
}

func TestExtraArgsDoNotLeakIntoConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Args = []string{"--test"}

	_, err := invocation.From(cfg, []string{"--extra"})
	require.NoError(t, err)
	assert.Equal(t, []string{"--test"}, cfg.Args)
}

func TestImageTemplate(t *testing.T) {
	cfg := config.Default()
	cfg.Image = `ghcr.io/home-assistant/{{ .arch | upper }}-builder:{{ .branch | replace "/" "-" }}`
	cfg.Branch = "release/1.2"

	inv, err := invocation.From(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "ghcr.io/home-assistant/AMD64-builder:release-1.2", inv.Image)
}

func TestImageTemplateErrors(t *testing.T) {
	cfg := config.Default()
	cfg.Image = "{{ .platform }}-builder"

	_, err := invocation.From(cfg, nil)
	assert.ErrorContains(t, err, "templating image")

	cfg.Image = "{{ .arch "
	_, err = invocation.From(cfg, nil)
	assert.Error(t, err)
}

func TestValidateReportsEverything(t *testing.T) {
	cfg := config.Default()
	cfg.Image = ""
	cfg.Repository = ""
	cfg.Branch = ""
	cfg.Socket = ""

	_, err := invocation.From(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "builder image is not set")
	assert.Contains(t, err.Error(), "repository is not set")
	assert.Contains(t, err.Error(), "branch is not set")
	assert.Contains(t, err.Error(), "docker socket is not set")
	assert.NotContains(t, err.Error(), "credentials")
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/builder")

	cases := map[string]string{
		"~":             "/home/builder",
		"~/.docker":     "/home/builder/.docker",
		"/root/.docker": "/root/.docker",
		"~other/x":      "~other/x",
		"relative":      "relative",
	}
	for in, want := range cases {
		got, err := invocation.ExpandHome(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
}

func TestPreflightMissingSocket(t *testing.T) {
	inv := defaultInvocation(t)
	inv.Socket = filepath.Join(t.TempDir(), "docker.sock")

	err := inv.Preflight()
	assert.ErrorIs(t, err, invocation.ErrSocketUnavailable)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPreflightNotASocket(t *testing.T) {
	inv := defaultInvocation(t)
	inv.Socket = filepath.Join(t.TempDir(), "docker.sock")
	require.NoError(t, os.WriteFile(inv.Socket, nil, 0o600))

	err := inv.Preflight()
	assert.ErrorIs(t, err, invocation.ErrSocketUnavailable)
	assert.ErrorContains(t, err, "is not a socket")
}

func TestPreflightWithSocket(t *testing.T) {
	dir := t.TempDir()
	socket := filepath.Join(dir, "d.sock")
	listener, err := net.Listen("unix", socket)
	require.NoError(t, err)
	defer listener.Close()

	inv := defaultInvocation(t)
	inv.Socket = socket
	// a missing credentials dir only warns
	inv.CredentialsDir = filepath.Join(dir, "missing")

	assert.NoError(t, inv.Preflight())
}
