package invocation_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asadpanda/insteon-mqtt/pkg/invocation"
)

func initCheckout(t *testing.T, origin string) (string, *git.Repository, plumbing.Hash) {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	if origin != "" {
		_, err = repo.CreateRemote(&gitconfig.RemoteConfig{
			Name: git.DefaultRemoteName,
			URLs: []string{origin},
		})
		require.NoError(t, err)
	}

	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte("{}"), 0o644))
	_, err = wt.Add("config.json")
	require.NoError(t, err)
	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "builder", Email: "builder@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	return dir, repo, hash
}

func TestFromCheckout(t *testing.T) {
	dir, repo, _ := initCheckout(t, "https://github.com/example/insteon-mqtt")

	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName("dev"),
		Create: true,
	}))

	// nested directories resolve to the enclosing checkout
	nested := filepath.Join(dir, "insteon_mqtt")
	require.NoError(t, os.Mkdir(nested, 0o755))

	origin, branch, err := invocation.FromCheckout(nested)
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/example/insteon-mqtt", origin)
	assert.Equal(t, "dev", branch)
}

func TestFromCheckoutWithoutOrigin(t *testing.T) {
	dir, _, _ := initCheckout(t, "")

	_, _, err := invocation.FromCheckout(dir)
	assert.ErrorContains(t, err, "origin")
}

func TestFromCheckoutDetachedHead(t *testing.T) {
	dir, repo, hash := initCheckout(t, "https://github.com/example/insteon-mqtt")

	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, wt.Checkout(&git.CheckoutOptions{Hash: hash}))

	origin, _, err := invocation.FromCheckout(dir)
	assert.ErrorContains(t, err, "detached")
	assert.Equal(t, "https://github.com/example/insteon-mqtt", origin)
}

func TestFromCheckoutNotARepository(t *testing.T) {
	_, _, err := invocation.FromCheckout(t.TempDir())
	assert.ErrorIs(t, err, git.ErrRepositoryNotExists)
}
