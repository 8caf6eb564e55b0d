package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/almacen/internal/flagx"
)

var clientFlags = []string{
	"-d", "-storage", "-db", "-ls", "-quota",
	"-bridge", "-secret", "-bridge-timeout",
	"-backup", "-backup-dir", "-s3-bucket", "-s3-prefix", "-s3-region", "-s3-endpoint", "-s3-user", "-s3-password",
	"-cache", "-log", "-level", "-timeout",
}

// parseClientFlags overlays cfg with the client flags found in args:
//
//	-d dir            data directory
//	-storage name     sqlite | bridge | local | auto
//	-db path          SQLite database file
//	-ls path          local storage file
//	-quota bytes      local storage quota
//	-bridge addr      bridge address
//	-secret s         bridge shared secret
//	-bridge-timeout d bridge probe timeout (e.g. 2s)
//	-backup name      dir | s3 | download
//	-backup-dir dir   directory for the dir destination
//	-s3-*             S3 bucket, prefix, region, endpoint, user, password
//	-cache n          memory cache entries
//	-log level        debug | info | warn | error
//	-level name       default encryption level
//	-timeout d        session auto-lock timeout, 0 disables
func parseClientFlags(cfg *Client, args []string) error {
	fs := flag.NewFlagSet("almacen", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	fs.StringVar(&cfg.Storage, "storage", cfg.Storage, "storage backend")
	fs.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "SQLite database path")
	fs.StringVar(&cfg.LocalStoragePath, "ls", cfg.LocalStoragePath, "local storage file")
	fs.Int64Var(&cfg.LocalQuota, "quota", cfg.LocalQuota, "local storage quota in bytes")
	fs.StringVar(&cfg.BridgeAddr, "bridge", cfg.BridgeAddr, "bridge address")
	fs.StringVar(&cfg.BridgeSecret, "secret", cfg.BridgeSecret, "bridge shared secret")
	fs.DurationVar(&cfg.BridgeTimeout, "bridge-timeout", cfg.BridgeTimeout, "bridge probe timeout")
	fs.StringVar(&cfg.BackupDestination, "backup", cfg.BackupDestination, "backup destination")
	fs.StringVar(&cfg.BackupDir, "backup-dir", cfg.BackupDir, "backup directory")
	fs.StringVar(&cfg.S3Bucket, "s3-bucket", cfg.S3Bucket, "S3 bucket")
	fs.StringVar(&cfg.S3Prefix, "s3-prefix", cfg.S3Prefix, "S3 key prefix")
	fs.StringVar(&cfg.S3Region, "s3-region", cfg.S3Region, "S3 region")
	fs.StringVar(&cfg.S3Endpoint, "s3-endpoint", cfg.S3Endpoint, "S3 base endpoint")
	fs.StringVar(&cfg.S3AccessKey, "s3-user", cfg.S3AccessKey, "S3 access key")
	fs.StringVar(&cfg.S3SecretKey, "s3-password", cfg.S3SecretKey, "S3 secret key")
	fs.Int64Var(&cfg.CacheSize, "cache", cfg.CacheSize, "memory cache entries")
	fs.StringVar(&cfg.LogLevel, "log", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.EncryptionLevel, "level", cfg.EncryptionLevel, "default encryption level")
	fs.DurationVar(&cfg.SessionTimeout, "timeout", cfg.SessionTimeout, "session auto-lock timeout")

	if err := fs.Parse(flagx.FilterArgs(args, clientFlags)); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}

// parseBridgeFlags overlays cfg with -a (listen address), -db, -s (secret),
// -t (token validity) and -log.
func parseBridgeFlags(cfg *Bridge, args []string) error {
	fs := flag.NewFlagSet("bridge", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ListenAddr, "a", cfg.ListenAddr, "listen address")
	fs.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "SQLite database path")
	fs.StringVar(&cfg.Secret, "s", cfg.Secret, "shared secret for access tokens")
	fs.DurationVar(&cfg.TokenValidity, "t", cfg.TokenValidity, "access token validity")
	fs.StringVar(&cfg.LogLevel, "log", cfg.LogLevel, "log level")

	if err := fs.Parse(flagx.FilterArgs(args, []string{"-a", "-db", "-s", "-t", "-log"})); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
