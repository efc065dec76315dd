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
package config

import (
	"fmt"
	"os"

	"r00t2.io/gokwallet"
)

const (
	walletApp    = "cryptkeeper"
	walletFolder = "Passwords"
	walletMap    = "cryptkeeper"
)

// Gets a secret value from kwallet
func getSecretFromKWallet(what string) (string, error) {
	if os.Getenv("USE_LIBSECRET") != "" {
		return "", fmt.Errorf("skipping kwallet")
	}

	var (
		err error
		wm  *gokwallet.WalletManager
	)

	if wm, err = gokwallet.NewWalletManager(walletRecurseOpts(), walletApp); err != nil {
		return "", err
	}

	for _, w := range wm.Wallets {
		f, ok := w.Folders[walletFolder]
		if !ok {
			continue
		}
		m, ok := f.Maps[walletMap]
		if !ok {
			continue
		}
		if value, ok := m.Value[what]; ok {
			return value, nil
		}
	}
	return "", fmt.Errorf("%s not found in kwallet", what)
}

// walletRecurseOpts returns a copy of the library defaults that also loads
// every wallet item. The package level defaults are left untouched.
func walletRecurseOpts() *gokwallet.RecurseOpts {
	r := *gokwallet.DefaultRecurseOpts
	r.AllWalletItems = true
	return &r
}
