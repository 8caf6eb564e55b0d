package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/almacen/internal/flagx"
	"github.com/dmitrijs2005/almacen/internal/timex"
)

// clientJSON is the on-disk form of Client. Pointer fields tell "absent"
// apart from zero values, so a partial file only overrides what it names.
type clientJSON struct {
	DataDir          *string `json:"data_dir"`
	Storage          *string `json:"storage"`
	DatabasePath     *string `json:"database_path"`
	LocalStoragePath *string `json:"local_storage_path"`
	LocalQuota       *int64  `json:"local_quota"`

	BridgeAddr    *string         `json:"bridge_addr"`
	BridgeSecret  *string         `json:"bridge_secret"`
	BridgeTimeout *timex.Duration `json:"bridge_timeout"`

	BackupDestination *string `json:"backup_destination"`
	BackupDir         *string `json:"backup_dir"`
	S3Bucket          *string `json:"s3_bucket"`
	S3Prefix          *string `json:"s3_prefix"`
	S3Region          *string `json:"s3_region"`
	S3Endpoint        *string `json:"s3_endpoint"`
	S3AccessKey       *string `json:"s3_access_key"`
	S3SecretKey       *string `json:"s3_secret_key"`

	CacheSize       *int64          `json:"cache_size"`
	LogLevel        *string         `json:"log_level"`
	EncryptionLevel *string         `json:"encryption_level"`
	SessionTimeout  *timex.Duration `json:"session_timeout"`
}

type bridgeJSON struct {
	ListenAddr    *string         `json:"listen_addr"`
	DatabasePath  *string         `json:"database_path"`
	Secret        *string         `json:"secret"`
	TokenValidity *timex.Duration `json:"token_validity"`
	LogLevel      *string         `json:"log_level"`
}

func readJSON(args []string, v any) (bool, error) {
	path := flagx.ConfigPath(args)
	if path == "" {
		return false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse config %s: %w", path, err)
	}
	return true, nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *timex.Duration) {
	if src != nil {
		*dst = src.Duration
	}
}

func parseClientJSON(cfg *Client, args []string) error {
	var j clientJSON
	ok, err := readJSON(args, &j)
	if err != nil || !ok {
		return err
	}

	set(&cfg.DataDir, j.DataDir)
	set(&cfg.Storage, j.Storage)
	set(&cfg.DatabasePath, j.DatabasePath)
	set(&cfg.LocalStoragePath, j.LocalStoragePath)
	set(&cfg.LocalQuota, j.LocalQuota)
	set(&cfg.BridgeAddr, j.BridgeAddr)
	set(&cfg.BridgeSecret, j.BridgeSecret)
	setDuration(&cfg.BridgeTimeout, j.BridgeTimeout)
	set(&cfg.BackupDestination, j.BackupDestination)
	set(&cfg.BackupDir, j.BackupDir)
	set(&cfg.S3Bucket, j.S3Bucket)
	set(&cfg.S3Prefix, j.S3Prefix)
	set(&cfg.S3Region, j.S3Region)
	set(&cfg.S3Endpoint, j.S3Endpoint)
	set(&cfg.S3AccessKey, j.S3AccessKey)
	set(&cfg.S3SecretKey, j.S3SecretKey)
	set(&cfg.CacheSize, j.CacheSize)
	set(&cfg.LogLevel, j.LogLevel)
	set(&cfg.EncryptionLevel, j.EncryptionLevel)
	setDuration(&cfg.SessionTimeout, j.SessionTimeout)
	return nil
}

func parseBridgeJSON(cfg *Bridge, args []string) error {
	var j bridgeJSON
	ok, err := readJSON(args, &j)
	if err != nil || !ok {
		return err
	}

	set(&cfg.ListenAddr, j.ListenAddr)
	set(&cfg.DatabasePath, j.DatabasePath)
	set(&cfg.Secret, j.Secret)
	setDuration(&cfg.TokenValidity, j.TokenValidity)
	set(&cfg.LogLevel, j.LogLevel)
	return nil
}
