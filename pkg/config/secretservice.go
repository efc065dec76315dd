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

	"r00t2.io/gosecret"
)

// Items are stored with the same path KWallet uses when it bridges the
// secret service API.
const secretServicePath = "/" + walletFolder + "/" + walletMap

// Gets a secret from the freedesktop secret service
func getSecretFromSecretService(what string) (string, error) {
	if os.Getenv("USE_KWALLET") != "" {
		return "", fmt.Errorf("skipping secret service")
	}

	var (
		err           error
		service       *gosecret.Service
		unlockedItems []*gosecret.Item
	)

	if service, err = gosecret.NewService(); err != nil {
		return "", err
	}
	defer service.Close()

	service.Legacy = true
	if unlockedItems, _, err = service.SearchItems(map[string]string{"Path": secretServicePath}); err != nil {
		return "", err
	}

	for _, item := range unlockedItems {
		attributes, err := item.Attributes()
		if err != nil {
			continue
		}
		if value, ok := attributes[what]; ok {
			return value, nil
		}
	}
	return "", fmt.Errorf("%s not found in secret service", what)
}

// getSecret tries kwallet first and then the secret service. An empty string
// means neither store holds the value.
func getSecret(what string) string {
	var (
		value string
		err   error
	)

	if value, err = getSecretFromKWallet(what); err == nil {
		return value
	}

	if value, err = getSecretFromSecretService(what); err == nil {
		return value
	}
	return ""
}
