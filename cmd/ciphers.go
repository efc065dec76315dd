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
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/notapipeline/cryptkeeper/pkg/crypto"
)

// ciphersCmd represents the ciphers command
var ciphersCmd = &cobra.Command{
	Use:   "ciphers",
	Short: "List the supported ciphers and modes",
	Long: `List the block ciphers and modes that may be used for the cipher and
mode settings. Key bytes are taken from the front of the 40 character
stretched key.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		modes := make([]string, 0)
		for _, m := range crypto.SupportedModes() {
			modes = append(modes, m.String())
		}

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Cipher", "Key bytes", "Block bytes", "Modes"})
		for _, c := range crypto.SupportedCiphers() {
			var marker string
			if cfg != nil && cfg.Cipher == c.Name {
				marker = " *"
			}
			t.AppendRow(table.Row{c.Name.String() + marker, c.KeySize, c.BlockSize, strings.Join(modes, ", ")})
		}
		t.Render()

		if cfg != nil && cfg.Cipher != "" {
			fmt.Fprintln(cmd.OutOrStdout(), "* configured cipher")
		}
	},
}

func init() {
	rootCmd.AddCommand(ciphersCmd)
}
