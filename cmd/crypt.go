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
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/notapipeline/cryptkeeper/pkg/keeper"
	"github.com/notapipeline/cryptkeeper/pkg/types"
)

var (
	noNewline bool
	rawInput  bool
)

// encryptCmd represents the encrypt command
var encryptCmd = &cobra.Command{
	Use:   "encrypt [TEXT]",
	Short: "Encrypt text with the configured key",
	Long: `Encrypt TEXT, or everything read from stdin when TEXT is omitted, and
print the resulting blob as base64.

One trailing newline is removed from stdin so that "echo TEXT | cryptkeeper
encrypt" and "cryptkeeper encrypt TEXT" agree. Use --raw to encrypt stdin
exactly as read, for example binary data.

The blob carries no header. It can only be read back with the same key,
cipher, mode and stretch settings.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			k         *keeper.Keeper
			plaintext []byte
			blob      types.Blob
		)

		if plaintext, err = argOrStdin(cmd, args); err != nil {
			return err
		}
		if len(args) == 0 && !rawInput {
			plaintext = trimNewline(plaintext)
		}
		if k, err = getKeeper(); err != nil {
			return err
		}
		if blob, err = k.Encrypt(plaintext); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), blob.String())
		return nil
	},
}

// decryptCmd represents the decrypt command
var decryptCmd = &cobra.Command{
	Use:   "decrypt [BLOB]",
	Short: "Decrypt a base64 blob written by encrypt",
	Long: `Decrypt BLOB, or the blob read from stdin when BLOB is omitted, and
print the plaintext.

A blob that was altered, or that was written with a different key, is
rejected.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			k         *keeper.Keeper
			text      []byte
			blob      types.Blob
			plaintext []byte
		)

		if text, err = argOrStdin(cmd, args); err != nil {
			return err
		}
		if blob, err = types.ParseBlob(strings.TrimSpace(string(text))); err != nil {
			return err
		}
		if k, err = getKeeper(); err != nil {
			return err
		}
		if plaintext, err = k.Decrypt(blob); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if _, err = out.Write(plaintext); err != nil {
			return err
		}
		if !noNewline {
			fmt.Fprintln(out)
		}
		return nil
	},
}

func argOrStdin(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 1 {
		return []byte(args[0]), nil
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, cmd.InOrStdin()); err != nil {
		return nil, fmt.Errorf("unable to read stdin: %w", err)
	}
	return buf.Bytes(), nil
}

// trimNewline removes a single trailing "\n" or "\r\n"
func trimNewline(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
		if n := len(b); n > 0 && b[n-1] == '\r' {
			b = b[:n-1]
		}
	}
	return b
}

func init() {
	encryptCmd.Flags().BoolVarP(&rawInput, "raw", "r", false, "encrypt stdin exactly as read, keeping any trailing newline")
	decryptCmd.Flags().BoolVarP(&noNewline, "no-newline", "n", false, "do not print a trailing newline after the plaintext")
	rootCmd.AddCommand(encryptCmd)
	rootCmd.AddCommand(decryptCmd)
}
