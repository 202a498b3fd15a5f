package invocation

import (
	"errors"
	"fmt"

	git "github.com/go-git/go-git/v5"
	"github.com/rs/zerolog/log"
)

// FromCheckout reads the origin URL and the checked out branch of the git
// repository containing path.
func FromCheckout(path string) (originURL string, branch string, err error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", "", fmt.Errorf("failed to open repository: %w", err)
	}

	remote, err := repo.Remote(git.DefaultRemoteName)
	if err != nil {
		return "", "", fmt.Errorf("failed to read remote %q: %w", git.DefaultRemoteName, err)
	}
	if urls := remote.Config().URLs; len(urls) > 0 {
		originURL = urls[0]
	}
	if originURL == "" {
		return "", "", fmt.Errorf("remote %q has no URL", git.DefaultRemoteName)
	}

	head, err := repo.Head()
	if err != nil {
		return originURL, "", fmt.Errorf("failed to get HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return originURL, "", errors.New("HEAD is detached, check out a branch first")
	}
	branch = head.Name().Short()

	log.Debug().Str("repository", originURL).Str("branch", branch).Str("path", path).Msg("Read checkout")
	return originURL, branch, nil
}
