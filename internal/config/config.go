// Package config loads streamctl settings from an ini file.
//
// A missing file yields the defaults. Recognized keys:
//
//	[storage]
//	cluster_size  = 256
//	listing_cache = remember   ; none | remember
//	content_cache = none       ; none | remember
//	compaction    = compact    ; compact | trim
//
//	[tx]
//	scratch_dir  =             ; defaults to the target's directory
//	memory_limit = 8388608
//	flush_mode   = auto        ; auto | data | full
//
//	[log]
//	enabled = false
//	level   = info
//	json    = false
//	dir     =                  ; daily files here instead of stderr
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"gopkg.in/ini.v1"

	"github.com/joshuapare/clusterkit/cluster"
	"github.com/joshuapare/clusterkit/internal/format"
	"github.com/joshuapare/clusterkit/internal/logger"
	"github.com/joshuapare/clusterkit/medium"
	"github.com/joshuapare/clusterkit/tx"
)

// Config is the resolved configuration.
type Config struct {
	ClusterSize  uint32
	ListingCache cluster.CachePolicy
	ContentCache cluster.CachePolicy
	Compaction   cluster.Compaction

	ScratchDir  string
	MemoryLimit int64
	FlushMode   medium.FlushMode

	LogEnabled bool
	LogLevel   slog.Level
	LogJSON    bool
	LogDir     string
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg, _ := parse(ini.Empty())
	return cfg
}

// Load reads path. An empty path or a missing file yields Default.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	raw, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg, err := parse(raw)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func parse(raw *ini.File) (*Config, error) {
	cfg := &Config{}
	if err := cfg.parseStorage(raw.Section("storage")); err != nil {
		return nil, err
	}
	if err := cfg.parseTx(raw.Section("tx")); err != nil {
		return nil, err
	}
	cfg.parseLog(raw.Section("log"))
	return cfg, nil
}

func (cfg *Config) parseStorage(section *ini.Section) error {
	size := section.Key("cluster_size").MustUint(format.DefaultClusterSize)
	if size == 0 || size > format.MaxClusterSize {
		return fmt.Errorf("storage.cluster_size %d outside (0, %d]", size, format.MaxClusterSize)
	}
	cfg.ClusterSize = uint32(size)

	var err error
	if cfg.ListingCache, err = cluster.ParseCachePolicy(section.Key("listing_cache").MustString("remember")); err != nil {
		return err
	}
	if cfg.ContentCache, err = cluster.ParseCachePolicy(section.Key("content_cache").MustString("none")); err != nil {
		return err
	}
	if cfg.Compaction, err = cluster.ParseCompaction(section.Key("compaction").MustString("compact")); err != nil {
		return err
	}
	return nil
}

func (cfg *Config) parseTx(section *ini.Section) error {
	cfg.ScratchDir = section.Key("scratch_dir").String()
	cfg.MemoryLimit = section.Key("memory_limit").MustInt64(tx.DefaultMemoryLimit)
	mode, err := medium.ParseFlushMode(section.Key("flush_mode").MustString("auto"))
	if err != nil {
		return err
	}
	cfg.FlushMode = mode
	return nil
}

func (cfg *Config) parseLog(section *ini.Section) {
	cfg.LogEnabled = section.Key("enabled").MustBool(false)
	cfg.LogLevel = logger.ParseLevel(section.Key("level").MustString("info"))
	cfg.LogJSON = section.Key("json").MustBool(false)
	cfg.LogDir = section.Key("dir").String()
}

// StorageOptions returns cluster options for storages opened by the CLI.
func (cfg *Config) StorageOptions() cluster.Options {
	return cluster.Options{
		ClusterSize:  cfg.ClusterSize,
		ListingCache: cfg.ListingCache,
		ContentCache: cfg.ContentCache,
		Compaction:   cfg.Compaction,
	}
}

// TxOptions returns transaction options for the CLI's mutating commands.
func (cfg *Config) TxOptions() tx.Options {
	return tx.Options{
		ScratchDir:  cfg.ScratchDir,
		MemoryLimit: cfg.MemoryLimit,
		FlushMode:   cfg.FlushMode,
	}
}

// LoggerOptions returns the logger settings.
func (cfg *Config) LoggerOptions() logger.Options {
	return logger.Options{
		Enabled: cfg.LogEnabled,
		Level:   cfg.LogLevel,
		JSON:    cfg.LogJSON,
		LogDir:  cfg.LogDir,
	}
}
