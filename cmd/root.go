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

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hierfs-io/hierfs/cfg"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile       string
	bindErr       error
	configFileErr error
	unmarshalErr  error
	MountConfig   cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "hierfs [flags] mount_point [store_url]",
	Short: "Mount a hierarchical namespace as a local POSIX-like file system",
	Long: `hierfs is a FUSE adapter over a three-tier node store: a durable
          backing store, a bounded write-through cache, and a path-keyed
          namespace manager. With one argument it mounts an in-memory,
          non-durable namespace; with two, the second argument names a
          durable store to connect to (store.url takes the same value).`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if configFileErr != nil {
			return configFileErr
		}
		if unmarshalErr != nil {
			return unmarshalErr
		}
		cfg.Rationalize(&MountConfig)
		mountPoint, storeURL, err := populateArgs(args)
		if err != nil {
			return err
		}
		if storeURL != "" {
			MountConfig.Store.URL = storeURL
		}
		return mountWithConfig(mountPoint, &MountConfig)
	},
}

// populateArgs splits the positional arguments into a mount point and an
// optional store URL, mirroring the one-or-two-argument convention
// gcsfuse's populateArgs uses for [bucket] mount_point.
func populateArgs(args []string) (mountPoint string, storeURL string, err error) {
	switch len(args) {
	case 1:
		mountPoint = args[0]
	case 2:
		mountPoint = args[0]
		storeURL = args[1]
	default:
		err = fmt.Errorf(
			"%s takes one or two arguments. Run `%s --help` for more info.",
			filepath.Base(os.Args[0]),
			filepath.Base(os.Args[0]))
		return
	}

	mountPoint, err = filepath.Abs(mountPoint)
	if err != nil {
		err = fmt.Errorf("canonicalizing mount point: %w", err)
		return
	}
	return
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	if cfgFile == "" {
		unmarshalErr = viper.Unmarshal(&MountConfig)
		return
	}

	resolved, err := filepath.Abs(cfgFile)
	if err != nil {
		configFileErr = fmt.Errorf("error while resolving config file path: %w", err)
		return
	}
	viper.SetConfigFile(resolved)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		configFileErr = fmt.Errorf("error while reading config file: %w", err)
		return
	}
	unmarshalErr = viper.Unmarshal(&MountConfig)
}
