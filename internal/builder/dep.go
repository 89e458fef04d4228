package builder

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/qobs-build/cobble/internal/msg"
)

var sourceShortcuts = map[string]string{
	"gh:": "https://github.com/",
	"gl:": "https://gitlab.com/",
	"bb:": "https://bitbucket.org/",
	"sr:": "https://git.sr.ht/",
	"cb:": "https://codeberg.org/",
}

const gitPrefix = "git:"

var errIllegalSource = errors.New("empty or illegal fetch source")

// resolveFetchSource expands a [fetch] value into a git URL, e.g.
//
//	gh:ocornut/imgui@docking#v1.91.9
//	git:https://example.com/sdl.git
//	https://github.com/libsdl-org/SDL
func resolveFetchSource(source string) (string, error) {
	if source == "" {
		return "", errIllegalSource
	}
	if strings.HasPrefix(source, gitPrefix) {
		return source[len(gitPrefix):], nil
	}
	for shortcut, base := range sourceShortcuts {
		if strings.HasPrefix(source, shortcut) {
			return base + source[len(shortcut):], nil
		}
	}
	if isURL(source) {
		return source, nil
	}
	return "", fmt.Errorf("%w: %q (want gh:owner/repo, git:<url> or a URL)", errIllegalSource, source)
}

func isURL(maybeURL string) bool {
	u, err := url.Parse(maybeURL)
	return err == nil && u.Scheme != "" && u.Host != ""
}

type gitURL struct {
	cleanURL    string
	branch      string
	commitOrTag string
}

// someone/something@master#0.1.0
// someone/something@feature-branch#12345abc
// someone/something#12345abc
func parseGitURL(rawURL string) (res gitURL) {
	base, rev, found := strings.Cut(rawURL, "#")
	if found {
		res.commitOrTag = rev
	}

	// an @ before the host is userinfo, not a branch
	schemeEnd := strings.Index(base, "://")
	if i := strings.LastIndex(base, "@"); i > schemeEnd+3 && i > strings.LastIndex(base, "/") {
		res.branch = base[i+1:]
		base = base[:i]
	}
	res.cleanURL = base

	if !strings.HasSuffix(res.cleanURL, ".git") {
		res.cleanURL += ".git"
	}

	return
}

// cloneGitRepo clones a Git remote into the specified directory
func cloneGitRepo(rawURL, toWhere string) error {
	parsedURL := parseGitURL(rawURL)

	cloneOptions := &git.CloneOptions{
		URL:               parsedURL.cleanURL,
		Progress:          &msg.IndentWriter{Indent: "    ", W: msg.Output},
		RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
	}

	if parsedURL.commitOrTag == "" {
		cloneOptions.Depth = 1 // we can do a shallow clone of the latest commit
	}

	if parsedURL.branch != "" {
		cloneOptions.ReferenceName = plumbing.NewBranchReferenceName(parsedURL.branch)
		cloneOptions.SingleBranch = true
	}

	repo, err := git.PlainClone(toWhere, cloneOptions)
	if err != nil {
		return err
	}

	if parsedURL.commitOrTag != "" {
		w, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("could not get worktree: %w", err)
		}

		revision := parsedURL.commitOrTag
		hash, err := repo.ResolveRevision(plumbing.Revision(revision))
		if err != nil {
			return fmt.Errorf("could not resolve revision `%s`: %w", revision, err)
		}

		err = w.Checkout(&git.CheckoutOptions{
			Hash:  *hash,
			Force: true,
		})
		if err != nil {
			return fmt.Errorf("failed to checkout `%s`: %w", revision, err)
		}
	}

	return nil
}

// needsFetch reports whether dir is absent or empty
func needsFetch(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return true, nil
		}
		return false, err
	}
	return len(entries) == 0, nil
}
