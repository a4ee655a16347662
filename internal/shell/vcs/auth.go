package vcs

import (
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// authFor picks credentials for a remote. SSH remotes use the configured
// private key; HTTP(S) remotes use the configured token. Anything else,
// including local paths, goes without auth.
func (f *Fetcher) authFor(remote string) (transport.AuthMethod, error) {
	ep, err := transport.NewEndpoint(remote)
	if err != nil {
		return nil, fmt.Errorf("invalid remote: %w", err)
	}

	switch ep.Protocol {
	case "ssh":
		if f.cfg.SSHKeyPath == "" {
			return nil, nil
		}
		user := ep.User
		if user == "" {
			user = "git"
		}
		keys, err := gitssh.NewPublicKeysFromFile(user, f.cfg.SSHKeyPath, f.cfg.SSHKeyPassphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to load ssh key: %w", err)
		}
		if f.cfg.KnownHostsPath != "" {
			cb, err := knownhosts.New(f.cfg.KnownHostsPath)
			if err != nil {
				return nil, fmt.Errorf("failed to load known_hosts: %w", err)
			}
			keys.HostKeyCallback = cb
		}
		return keys, nil

	case "http", "https":
		if f.cfg.Token == "" {
			return nil, nil
		}
		user := strings.TrimSpace(f.cfg.Username)
		if user == "" {
			// Most forges ignore the user when a token is supplied.
			user = "git"
		}
		return &githttp.BasicAuth{Username: user, Password: f.cfg.Token}, nil
	}

	return nil, nil
}
