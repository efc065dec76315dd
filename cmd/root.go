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

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/notapipeline/cryptkeeper/pkg/config"
	"github.com/notapipeline/cryptkeeper/pkg/keeper"
)

var (
	cfgFile string
	debug   bool
	quiet   bool

	cfg    *config.Config
	logger *zap.Logger = zap.NewNop()
)

// These are referenced as variables so tests can replace them
var exit func(code int) = memguard.SafeExit

var newKeeper func(c *config.Config, l *zap.Logger) (*keeper.Keeper, error) = func(c *config.Config, l *zap.Logger) (*keeper.Keeper, error) {
	return keeper.Instance(c, keeper.WithLogger(l))
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cryptkeeper",
	Short: "Encrypt data at rest and hash passwords",
	Long: `
cryptkeeper encrypts small secrets with a key stretched from a passphrase and
hashes passwords with bcrypt.

Settings are read from $HOME/.config/cryptkeeper/config.yaml and may be
overridden from the environment (CK_KEY, CK_CIPHER, CK_MODE, CK_HASH_ROUNDS).
When no key is configured, KWallet and the freedesktop secret service are
searched for an entry named CK_KEY.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
		if logger, err = newLogger(debug, quiet); err != nil {
			return err
		}
		cfg = config.New(config.WithLogger(logger))
		return cfg.Load(cfgFile)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %s\n", err)
		exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/cryptkeeper/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "disable all logging")
}

// newLogger builds the process logger. Production output is limited to
// warnings so normal command output stays readable.
func newLogger(debug, quiet bool) (*zap.Logger, error) {
	switch {
	case debug && quiet:
		return nil, errors.New("--debug and --quiet are mutually exclusive")
	case quiet:
		return zap.NewNop(), nil
	case debug:
		return zap.NewDevelopment()
	}

	c := zap.NewProductionConfig()
	c.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	return c.Build()
}

// getKeeper builds the keeper from the loaded configuration
func getKeeper() (*keeper.Keeper, error) {
	if cfg == nil {
		return nil, errors.New("configuration has not been loaded")
	}
	return newKeeper(cfg, logger)
}
