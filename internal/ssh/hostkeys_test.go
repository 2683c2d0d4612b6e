package ssh_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/volkan-m/ssh-mcp-server/internal/log"
	"github.com/volkan-m/ssh-mcp-server/internal/ssh"
	"github.com/volkan-m/ssh-mcp-server/internal/testutil/sshtest"
)

func connect(t *testing.T, server *sshtest.Server, privKey []byte, knownHostsPath string) error {
	t.Helper()

	cb, err := ssh.AcceptNewHostKeyCallback(knownHostsPath, log.Noop)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := ssh.NewClient(ctx, ssh.ClientConfig{
		Host:            server.Host,
		Port:            server.Port,
		User:            "ai-runner",
		PrivateKey:      privKey,
		HostKeyCallback: cb,
	})
	if err != nil {
		return err
	}
	return client.Close()
}

func TestAcceptNewHostKeyCallbackLearnsUnknownHosts(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	privKey, _ := sshtest.GenerateKey(t)
	server := sshtest.NewServer(t, sshtest.ServerConfig{})
	knownHostsPath := filepath.Join(t.TempDir(), "ssh", "known_hosts")

	// First connection learns the key.
	require.NoError(connect(t, server, privKey, knownHostsPath))

	data, err := os.ReadFile(knownHostsPath)
	require.NoError(err)
	expLine := knownhosts.Line([]string{knownhosts.Normalize(server.Host + ":" + itoa(server.Port))}, server.HostKey)
	assert.Equal(expLine+"\n", string(data))

	// Second connection trusts the learned key without appending it again.
	require.NoError(connect(t, server, privKey, knownHostsPath))
	data2, err := os.ReadFile(knownHostsPath)
	require.NoError(err)
	assert.Equal(string(data), string(data2))
}

func TestAcceptNewHostKeyCallbackRejectsChangedKeys(t *testing.T) {
	privKey, _ := sshtest.GenerateKey(t)
	server := sshtest.NewServer(t, sshtest.ServerConfig{})
	knownHostsPath := filepath.Join(t.TempDir(), "known_hosts")

	// Another key is known for this host.
	_, otherHostKey := sshtest.GenerateKey(t)
	line := knownhosts.Line([]string{knownhosts.Normalize(server.Host + ":" + itoa(server.Port))}, otherHostKey)
	require.NoError(t, os.WriteFile(knownHostsPath, []byte(line+"\n"), 0600))

	err := connect(t, server, privKey, knownHostsPath)
	assert.Error(t, err)
}

func TestAcceptNewHostKeyCallbackRequiresPath(t *testing.T) {
	_, err := ssh.AcceptNewHostKeyCallback("", log.Noop)
	assert.Error(t, err)
}
