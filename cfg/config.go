// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cfg binds the command-line flags and config file values that
// parameterize a mount, in the style of gcsfuse's generated cfg package,
// trimmed to the settings this file system actually has.
package cfg

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the fully resolved set of mount-time settings.
type Config struct {
	Cache      CacheConfig      `yaml:"cache"`
	Store      StoreConfig      `yaml:"store"`
	Logging    LoggingConfig    `yaml:"logging"`
	FileSystem FileSystemConfig `yaml:"file-system" mapstructure:"file-system"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// CacheConfig configures the Node Cache (component B).
type CacheConfig struct {
	Capacity int `yaml:"capacity"`

	// MemcacheAddress, if non-empty, mirrors every cache write to a
	// memcache service at this address ("host:port").
	MemcacheAddress string `yaml:"memcache-address" mapstructure:"memcache-address"`

	TTL time.Duration `yaml:"ttl"`
}

// MetricsConfig configures the optional Prometheus metrics listener.
type MetricsConfig struct {
	// Addr, if non-empty ("host:port"), serves /metrics on a background
	// HTTP listener for the lifetime of the mount.
	Addr string `yaml:"addr"`
}

// StoreConfig configures the Persistent Node Store (component A). A
// zero-value URL selects the in-memory store.
type StoreConfig struct {
	URL string `yaml:"url"`
}

// LoggingConfig mirrors gcsfuse's logging section: a file path (empty
// means stderr), an output format, and a minimum severity.
type LoggingConfig struct {
	File     string `yaml:"file"`
	Format   string `yaml:"format"`
	Severity string `yaml:"severity"`
}

// FileSystemConfig holds the inode ownership applied to every node.
type FileSystemConfig struct {
	Uid int `yaml:"uid"`
	Gid int `yaml:"gid"`

	// Foreground sends the FUSE library's error log to stderr. The mount
	// always runs in the calling process, whatever this is set to.
	Foreground bool `yaml:"foreground"`
}

// BindFlags registers every flag in flagSet and binds it into viper,
// following the same flagSet.XxxP + viper.BindPFlag pattern gcsfuse's
// generated cfg.BindFlags uses.
func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.IntP("cache-capacity", "", 10, "Maximum number of nodes held in the in-process LRU.")
	if err = viper.BindPFlag("cache.capacity", flagSet.Lookup("cache-capacity")); err != nil {
		return err
	}

	flagSet.StringP("memcache-address", "", "", "Address (host:port) of a memcache service to mirror cache writes to.")
	if err = viper.BindPFlag("cache.memcache-address", flagSet.Lookup("memcache-address")); err != nil {
		return err
	}

	flagSet.DurationP("cache-ttl", "", 900*time.Second, "Advisory TTL for memcache-mirrored entries.")
	if err = viper.BindPFlag("cache.ttl", flagSet.Lookup("cache-ttl")); err != nil {
		return err
	}

	flagSet.StringP("store-url", "", "", "Connection URL for the durable node store. Empty selects an in-memory store.")
	if err = viper.BindPFlag("store.url", flagSet.Lookup("store-url")); err != nil {
		return err
	}

	flagSet.StringP("log-file", "", "", "Path to the log file. Empty logs to stderr.")
	if err = viper.BindPFlag("logging.file", flagSet.Lookup("log-file")); err != nil {
		return err
	}

	flagSet.StringP("log-format", "", "text", `Log format, "text" or "json".`)
	if err = viper.BindPFlag("logging.format", flagSet.Lookup("log-format")); err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", "info", "Minimum severity logged: trace, debug, info, warning, error, off.")
	if err = viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	flagSet.BoolP("foreground", "", false, "Log FUSE library errors to stderr.")
	if err = viper.BindPFlag("file-system.foreground", flagSet.Lookup("foreground")); err != nil {
		return err
	}

	flagSet.IntP("uid", "", -1, "UID that owns every inode. -1 uses the current process UID.")
	if err = viper.BindPFlag("file-system.uid", flagSet.Lookup("uid")); err != nil {
		return err
	}

	flagSet.IntP("gid", "", -1, "GID that owns every inode. -1 uses the current process GID.")
	if err = viper.BindPFlag("file-system.gid", flagSet.Lookup("gid")); err != nil {
		return err
	}

	flagSet.StringP("metrics-addr", "", "", "Address (host:port) to serve Prometheus metrics on. Empty disables it.")
	if err = viper.BindPFlag("metrics.addr", flagSet.Lookup("metrics-addr")); err != nil {
		return err
	}

	return nil
}

// Rationalize fills in defaults for settings left at their zero value (or,
// for the cache capacity and TTL, at a non-positive value), in the place
// gcsfuse's cfg.Rationalize runs after binding.
func Rationalize(c *Config) {
	if c.Cache.Capacity <= 0 {
		c.Cache.Capacity = 10
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = 900 * time.Second
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Severity == "" {
		c.Logging.Severity = "info"
	}
}
