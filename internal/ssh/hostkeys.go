package ssh

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/volkan-m/ssh-mcp-server/internal/log"
)

// knownHostsMu serializes known hosts reads and writes of all the callbacks
// in the process, every connection builds its own callback.
var knownHostsMu sync.Mutex

// InsecureHostKeyCallback accepts any host key.
func InsecureHostKeyCallback() ssh.HostKeyCallback {
	return ssh.InsecureIgnoreHostKey()
}

// AcceptNewHostKeyCallback returns a host key callback that trusts the keys in
// the known hosts file, learns the key of hosts it has never seen, and rejects
// hosts whose key changed (same as OpenSSH StrictHostKeyChecking=accept-new).
func AcceptNewHostKeyCallback(knownHostsPath string, logger log.Logger) (ssh.HostKeyCallback, error) {
	if knownHostsPath == "" {
		return nil, fmt.Errorf("known hosts path is required")
	}
	if logger == nil {
		logger = log.Noop
	}

	if err := os.MkdirAll(filepath.Dir(knownHostsPath), 0700); err != nil {
		return nil, fmt.Errorf("could not create known hosts directory: %w", err)
	}
	f, err := os.OpenFile(knownHostsPath, os.O_CREATE|os.O_RDONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("could not open known hosts file: %w", err)
	}
	f.Close()

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		knownHostsMu.Lock()
		defer knownHostsMu.Unlock()

		// Reloaded on every check so keys learned by other calls are seen.
		check, err := knownhosts.New(knownHostsPath)
		if err != nil {
			return fmt.Errorf("could not load known hosts: %w", err)
		}

		err = check(hostname, remote, key)
		if err == nil {
			return nil
		}

		var keyErr *knownhosts.KeyError
		if !errors.As(err, &keyErr) || len(keyErr.Want) > 0 {
			return err
		}

		line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
		if err := appendLine(knownHostsPath, line); err != nil {
			return fmt.Errorf("could not learn host key: %w", err)
		}
		logger.Warningf("Permanently added %s (%s) to the list of known hosts", hostname, key.Type())

		return nil
	}, nil
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteString(line + "\n")
	return err
}
