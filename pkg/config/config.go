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
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/notapipeline/cryptkeeper/pkg/crypto"
	"github.com/notapipeline/cryptkeeper/pkg/types"
)

// SECRET_NAME is the entry looked up in the desktop secret stores when no
// key has been configured.
const SECRET_NAME = "CK_KEY"

const redactedKey = "********"

// These functions are referenced as variables to enable them to
// be mocked in tests
var (
	ConfigPath   func() string            = getConfigPath
	lookupSecret func(what string) string = getSecret
)

type Config struct {
	Key           string           `yaml:"key" json:"key" env:"CK_KEY"`
	Cipher        types.CipherName `yaml:"cipher" json:"cipher" env:"CK_CIPHER"`
	Mode          types.BlockMode  `yaml:"mode" json:"mode" env:"CK_MODE"`
	HashRounds    int              `yaml:"hash_rounds" json:"hash_rounds" env:"CK_HASH_ROUNDS"`
	StretchRounds int              `yaml:"stretch_rounds,omitempty" json:"stretch_rounds,omitempty" env:"CK_STRETCH_ROUNDS"`
	ExactStretch  bool             `yaml:"exact_stretch,omitempty" json:"exact_stretch,omitempty" env:"CK_EXACT_STRETCH"`
	EntropyDevice string           `yaml:"entropy_device,omitempty" json:"entropy_device,omitempty" env:"CK_ENTROPY_DEVICE"`

	logger *zap.Logger
}

type Option func(*Config)

func WithLogger(l *zap.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.logger = l
		}
	}
}

func New(opts ...Option) *Config {
	c := &Config{
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Default returns a complete configuration without a key, used as the
// template written by `cryptkeeper config init`.
func Default() *Config {
	c := New()
	c.Cipher = types.Rijndael128
	c.Mode = types.ModeCBC
	c.HashRounds = 10
	c.StretchRounds = crypto.DefaultStretchRounds
	c.EntropyDevice = crypto.DefaultEntropyDevice
	return c
}

// Load the config file and apply overrides
//
// The config file is read from path, or from ~/.config/cryptkeeper/config.yaml
// when path is empty. A missing file is not an error. The environment is then
// checked for overrides and finally, if no key has been supplied, KWallet and
// the freedesktop secret service are searched for one.
//
// Load does not validate. Callers are expected to call `Validate` once any
// command line overrides have been applied.
func (c *Config) Load(path string) (err error) {
	if path == "" {
		path = ConfigPath()
	}
	if err = c.loadYaml(path); err != nil {
		return
	}
	if err = c.loadEnv(); err != nil {
		return
	}
	c.loadSecret()
	return
}

func (c *Config) loadYaml(path string) (err error) {
	var yamlFile []byte

	if _, err = os.Stat(path); errors.Is(err, os.ErrNotExist) {
		c.logger.Debug("no config file found", zap.String("path", path))
		return nil
	}
	if yamlFile, err = os.ReadFile(path); err != nil {
		return err
	}

	c.logger.Info("loading config file", zap.String("path", path))
	if err = yaml.Unmarshal(yamlFile, c); err != nil {
		return fmt.Errorf("unable to parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() (err error) {
	return env.Parse(c)
}

func (c *Config) loadSecret() {
	if c.Key != "" {
		return
	}
	if c.Key = lookupSecret(SECRET_NAME); c.Key != "" {
		c.logger.Info("key loaded from secret store")
	}
}

// Validate checks every setting the keeper needs before any key material is
// touched.
func (c *Config) Validate() error {
	if c.Key == "" {
		return types.ConfigurationError{Field: "key"}
	}
	if c.Cipher == "" {
		return types.ConfigurationError{Field: "cipher"}
	}
	if !crypto.IsSupportedCipher(c.Cipher) {
		return types.ConfigurationError{Field: "cipher", Reason: fmt.Sprintf("has unsupported value %q", c.Cipher)}
	}
	if c.Mode == "" {
		return types.ConfigurationError{Field: "mode"}
	}
	if !crypto.IsSupportedMode(c.Mode) {
		return types.ConfigurationError{Field: "mode", Reason: fmt.Sprintf("has unsupported value %q", c.Mode)}
	}
	if c.HashRounds == 0 {
		return types.ConfigurationError{Field: "hash_rounds"}
	}
	if c.StretchRounds < 0 {
		return types.ConfigurationError{Field: "stretch_rounds", Reason: "must not be negative"}
	}
	return nil
}

// Stretcher builds the key stretcher described by this config
func (c *Config) Stretcher() crypto.Stretcher {
	s := crypto.NewStretcher()
	if c.StretchRounds > 0 {
		s.Rounds = c.StretchRounds
	}
	s.Exact = c.ExactStretch
	return s
}

// Redacted returns a copy of the config that is safe to display
func (c *Config) Redacted() *Config {
	r := *c
	if r.Key != "" {
		r.Key = redactedKey
	}
	return &r
}

// Save writes the config to path, or to the default location when path is
// empty. The file is created readable by the owner only.
func (c *Config) Save(path string) (err error) {
	var data []byte
	if data, err = yaml.Marshal(c); err != nil {
		return err
	}

	if path == "" {
		path = ConfigPath()
	}
	if err = os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func getConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "cryptkeeper", "config.yaml")
}
