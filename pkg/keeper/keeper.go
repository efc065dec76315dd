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
package keeper

import (
	"fmt"
	"io"
	"sync"

	"github.com/awnumar/memguard"
	"go.uber.org/zap"

	"github.com/notapipeline/cryptkeeper/pkg/config"
	"github.com/notapipeline/cryptkeeper/pkg/crypto"
	"github.com/notapipeline/cryptkeeper/pkg/types"
)

// Keeper is the single entry point for encrypting data and hashing passwords
// with one validated configuration.
//
// The secret key is sealed in a memguard enclave at construction and only
// decrypted into locked memory for the duration of an Encrypt or Decrypt
// call. A Keeper is immutable once built and is safe for concurrent use.
type Keeper struct {
	key    *memguard.Enclave
	cipher *crypto.Cipher
	hasher *crypto.PasswordHasher
	random io.Reader
	logger *zap.Logger
}

type Option func(*Keeper)

func WithLogger(l *zap.Logger) Option {
	return func(k *Keeper) {
		if l != nil {
			k.logger = l
		}
	}
}

// WithRandom replaces the source used for IVs and salts
func WithRandom(r io.Reader) Option {
	return func(k *Keeper) {
		if r != nil {
			k.random = r
		}
	}
}

var (
	keeper *Keeper
	lock   = &sync.Mutex{}
)

// Instance gets the current keeper or creates one from cfg.
//
// Only the first successful call builds a keeper; later calls return it
// regardless of cfg until Reset is called.
var Instance = instance

func instance(cfg *config.Config, opts ...Option) (*Keeper, error) {
	lock.Lock()
	defer lock.Unlock()
	if keeper != nil {
		return keeper, nil
	}

	k, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	keeper = k
	return keeper, nil
}

// Reset the process wide keeper
func Reset() {
	lock.Lock()
	defer lock.Unlock()
	keeper = nil
}

// New validates cfg and builds the cipher and password hasher it describes.
//
// Nothing is built if the configuration is incomplete, and the key is never
// logged.
func New(cfg *config.Config, opts ...Option) (*Keeper, error) {
	if cfg == nil {
		return nil, types.ConfigurationError{Field: "key"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	k := &Keeper{
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(k)
	}

	if k.random == nil {
		device := cfg.EntropyDevice
		if device == "" {
			device = crypto.DefaultEntropyDevice
		}
		k.random = crypto.NewRandomSource(
			crypto.WithEntropyDevice(device),
			crypto.WithRandomLogger(k.logger),
		)
	}

	var err error
	if k.cipher, err = crypto.NewCipher(cfg.Cipher, cfg.Mode,
		crypto.WithStretcher(cfg.Stretcher()),
		crypto.WithRandom(k.random),
		crypto.WithCipherLogger(k.logger),
	); err != nil {
		return nil, err
	}

	if k.hasher, err = crypto.NewPasswordHasher(cfg.HashRounds,
		crypto.WithSaltSource(k.random),
		crypto.WithHasherLogger(k.logger),
	); err != nil {
		return nil, err
	}

	// NewEnclave wipes the source slice
	k.key = memguard.NewEnclave([]byte(cfg.Key))
	if k.key == nil {
		return nil, types.ConfigurationError{Field: "key", Reason: "must not be empty"}
	}

	k.logger.Info("keeper ready",
		zap.Stringer("cipher", cfg.Cipher),
		zap.Stringer("mode", cfg.Mode),
		zap.Int("hash_rounds", cfg.HashRounds),
		zap.Int("stretch_iterations", cfg.Stretcher().Iterations()))
	return k, nil
}

// withKey opens the enclave for the duration of fn
func (k *Keeper) withKey(fn func(key []byte) error) error {
	buf, err := k.key.Open()
	if err != nil {
		return types.CipherError{Op: "unseal", Err: fmt.Errorf("unable to open key enclave: %w", err)}
	}
	defer buf.Destroy()
	return fn(buf.Bytes())
}

// Encrypt seals plaintext with the configured key
func (k *Keeper) Encrypt(plaintext []byte) (blob types.Blob, err error) {
	err = k.withKey(func(key []byte) (err error) {
		blob, err = k.cipher.Encrypt(plaintext, key)
		return
	})
	if err != nil {
		k.logger.Debug("encrypt failed", zap.Error(err))
	}
	return
}

// Decrypt opens a blob written by Encrypt
func (k *Keeper) Decrypt(blob types.Blob) (plaintext []byte, err error) {
	err = k.withKey(func(key []byte) (err error) {
		plaintext, err = k.cipher.Decrypt(blob, key)
		return
	})
	return
}

// EncryptString encrypts plaintext and returns the blob as base64 text
func (k *Keeper) EncryptString(plaintext string) (string, error) {
	blob, err := k.Encrypt([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return blob.String(), nil
}

// DecryptString decodes a base64 blob and decrypts it
func (k *Keeper) DecryptString(text string) (string, error) {
	blob, err := types.ParseBlob(text)
	if err != nil {
		return "", err
	}
	plaintext, err := k.Decrypt(blob)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// HashPassword returns a new bcrypt hash of password
func (k *Keeper) HashPassword(password string) (string, error) {
	return k.hasher.Hash(password)
}

// VerifyPassword reports whether password matches hash
func (k *Keeper) VerifyPassword(password, hash string) bool {
	return k.hasher.Verify(password, hash)
}

// NeedsRehash reports whether hash should be replaced with one at the
// configured cost
func (k *Keeper) NeedsRehash(hash string) bool {
	return k.hasher.NeedsRehash(hash)
}

// Cipher exposes the configured cipher for callers that need its parameters
func (k *Keeper) Cipher() *crypto.Cipher {
	return k.cipher
}
