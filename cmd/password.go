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

	"github.com/spf13/cobra"

	"github.com/notapipeline/cryptkeeper/pkg/keeper"
	"github.com/notapipeline/cryptkeeper/pkg/tools"
)

var errPasswordMismatch = errors.New("password does not match")

var fromStdin bool

// passwordCmd represents the password command
var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Hash and verify passwords",
	Long: `Hash new passwords with bcrypt and verify passwords against stored
hashes. The cost is taken from hash_rounds in the configuration.

Passwords are read through GPG pinentry if available, otherwise from the
terminal. Use --stdin to read the first line of stdin instead.`,
}

var hashCmd = &cobra.Command{
	Use:   "hash",
	Short: "Print a bcrypt hash of a new password",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			k        *keeper.Keeper
			password []byte
			hash     string
		)

		if k, err = getKeeper(); err != nil {
			return err
		}
		if password, err = readPassword(cmd, true); err != nil {
			return err
		}
		if hash, err = k.HashPassword(string(password)); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify HASH",
	Short: "Check a password against a bcrypt hash",
	Long: `Check a password against HASH. The command exits non-zero when the
password does not match.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			k        *keeper.Keeper
			password []byte
		)

		if k, err = getKeeper(); err != nil {
			return err
		}
		if password, err = readPassword(cmd, false); err != nil {
			return err
		}
		if !k.VerifyPassword(string(password), args[0]) {
			return errPasswordMismatch
		}

		fmt.Fprintln(cmd.OutOrStdout(), "password matches")
		if k.NeedsRehash(args[0]) {
			fmt.Fprintf(cmd.ErrOrStderr(), "hash does not use cost %d and should be regenerated\n", cfg.HashRounds)
		}
		return nil
	},
}

func readPassword(cmd *cobra.Command, confirm bool) ([]byte, error) {
	if fromStdin {
		return tools.ReadFrom(cmd.InOrStdin())
	}
	if confirm {
		return tools.GetNewPassword("cryptkeeper")
	}
	return tools.GetPassword("cryptkeeper", "Enter the password to verify", "Password: ")
}

func init() {
	passwordCmd.PersistentFlags().BoolVar(&fromStdin, "stdin", false, "read the password from the first line of stdin")
	passwordCmd.AddCommand(hashCmd)
	passwordCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(passwordCmd)
}
