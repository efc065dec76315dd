/*
 *   Copyright 2023 Martin Proffitt <mproffitt@choclab.net>
 *
 *  Licensed under the Apache License, Version 2.0 (the "License");
 *  you may not use this file except in compliance with the License.
 *  You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 *  Unless required by applicable law or agreed to in writing, software
 *  distributed under the License is distributed on an "AS IS" BASIS,
 *  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *  See the License for the specific language governing permissions and
 *  limitations under the License.
 */
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/hokaccha/go-prettyjson"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/notapipeline/cryptkeeper/pkg/config"
	"github.com/notapipeline/cryptkeeper/pkg/tools"
)

var force bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Show the configuration after the config file, environment and secret
stores have been consulted. The key is never printed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var b []byte
		if b, err = prettyjson.Marshal(cfg.Redacted()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return cfg.Validate()
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a new config file",
	Long: `Write a config file with the default cipher, mode and cost. You will
be prompted for the key unless one is already set in the environment or a
secret store.

The file is written to --config, or $HOME/.config/cryptkeeper/config.yaml,
and is readable by the owner only.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var path string = cfgFile
		if path == "" {
			path = config.ConfigPath()
		}
		if _, err = os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists, use --force to overwrite it", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}

		c := config.Default()
		if c.Key = cfg.Key; c.Key == "" {
			var key []byte
			if key, err = tools.GetNewPassword("cryptkeeper key"); err != nil {
				return err
			}
			c.Key = string(key)
		}

		if err = c.Save(path); err != nil {
			return err
		}
		logger.Info("config written", zap.String("path", path))
		fmt.Fprintf(cmd.OutOrStdout(), "config written to %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing config file")
	configCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configCmd)
}
