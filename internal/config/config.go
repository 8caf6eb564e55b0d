// Package config builds the runtime configuration of both processes.
//
// Values are layered: built-in defaults, then an optional JSON file named by
// -c/-config, then individual command-line flags. Later layers win.
package config

import (
	"path/filepath"
	"time"
)

// Storage backends.
const (
	StorageSQLite = "sqlite"
	StorageBridge = "bridge"
	StorageLocal  = "local"
	StorageAuto   = "auto"
)

// Backup destinations.
const (
	BackupDir      = "dir"
	BackupS3       = "s3"
	BackupDownload = "download"
)

// Client holds the settings of the interactive client.
//
// Empty DatabasePath, LocalStoragePath and BackupDir are derived from DataDir
// by Resolve.
type Client struct {
	DataDir          string
	Storage          string
	DatabasePath     string
	LocalStoragePath string
	LocalQuota       int64

	BridgeAddr    string
	BridgeSecret  string
	BridgeTimeout time.Duration

	BackupDestination string
	BackupDir         string
	S3Bucket          string
	S3Prefix          string
	S3Region          string
	S3Endpoint        string
	S3AccessKey       string
	S3SecretKey       string

	CacheSize       int64
	LogLevel        string
	EncryptionLevel string
	SessionTimeout  time.Duration
}

// LoadDefaults populates c with development defaults.
func (c *Client) LoadDefaults() {
	c.DataDir = "almacen-data"
	c.Storage = StorageAuto
	c.LocalQuota = 5 << 20
	c.BridgeAddr = "127.0.0.1:50551"
	c.BridgeSecret = "almacen-dev-secret"
	c.BridgeTimeout = 2 * time.Second
	c.BackupDestination = BackupDir
	c.S3Bucket = "almacen"
	c.S3Prefix = "backups/"
	c.S3Region = "us-east-1"
	c.CacheSize = 1000
	c.LogLevel = "info"
	c.EncryptionLevel = "advanced"
	c.SessionTimeout = 15 * time.Minute
}

// Resolve fills the paths left empty from DataDir.
func (c *Client) Resolve() {
	if c.DatabasePath == "" {
		c.DatabasePath = filepath.Join(c.DataDir, "almacen.db")
	}
	if c.LocalStoragePath == "" {
		c.LocalStoragePath = filepath.Join(c.DataDir, "localstorage.json")
	}
	if c.BackupDir == "" {
		c.BackupDir = filepath.Join(c.DataDir, "backups")
	}
}

// LoadClient applies defaults, the JSON file and flags from args (usually
// os.Args[1:]) and resolves derived paths.
func LoadClient(args []string) (*Client, error) {
	cfg := &Client{}
	cfg.LoadDefaults()
	if err := parseClientJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseClientFlags(cfg, args); err != nil {
		return nil, err
	}
	cfg.Resolve()
	return cfg, nil
}

// Bridge holds the settings of the bridge process.
type Bridge struct {
	ListenAddr    string
	DatabasePath  string
	Secret        string
	TokenValidity time.Duration
	LogLevel      string
}

// LoadDefaults populates b with development defaults.
// NOTE: the secret must be overridden outside development.
func (b *Bridge) LoadDefaults() {
	b.ListenAddr = "127.0.0.1:50551"
	b.DatabasePath = "almacen-bridge.db"
	b.Secret = "almacen-dev-secret"
	b.TokenValidity = 5 * time.Minute
	b.LogLevel = "info"
}

// LoadBridge applies defaults, the JSON file and flags from args.
func LoadBridge(args []string) (*Bridge, error) {
	cfg := &Bridge{}
	cfg.LoadDefaults()
	if err := parseBridgeJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseBridgeFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
