package model

import (
	"io/fs"
	"time"
)

// CredentialInfo is the metadata of the private key file. It never carries key material.
type CredentialInfo struct {
	Path   string
	Exists bool
	// Regular is true when the path is a regular file (not a directory or device).
	Regular bool
	// Mode holds the permission bits of the file (only when it exists).
	Mode fs.FileMode
	// Secure is true when the permission bits are exactly SecureKeyPerm.
	Secure bool
}

// ConfigSnapshot is the read-only view of the running configuration.
type ConfigSnapshot struct {
	Host                  string
	User                  string
	Port                  int
	PrivateKeyPath        string
	KnownHostsPath        string
	InsecureIgnoreHostKey bool
	CommandTimeout        time.Duration
	ConnectTimeout        time.Duration
	Credential            CredentialInfo
	PatternCount          int
	// ConfigError is the reason the configuration can't be used, empty when valid.
	ConfigError string
}
