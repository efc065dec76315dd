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
package crypto

import (
	"bytes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/notapipeline/cryptkeeper/pkg/types"
)

var errMissingSeparator = errors.New("decrypted payload has no tag separator")

// Cipher is the authenticated encryption construction.
//
// A blob is produced as follows:
//
//	key     = stretch(secret)
//	payload = hex(hmac-sha1(key, plaintext)) ":" plaintext
//	raw     = encrypt(zeropad(payload), key, iv)
//	blob    = storeIV(raw, iv, key)
//
// The tag is checked only after a successful decrypt. Any tag mismatch is
// reported as types.AuthenticationError, whether the key was wrong or the blob
// was altered.
type Cipher struct {
	name      types.CipherName
	mode      types.BlockMode
	block     blockSpec
	seal      modeSpec
	stretcher Stretcher
	random    io.Reader
	logger    *zap.Logger
}

type CipherOption func(*Cipher)

func WithStretcher(s Stretcher) CipherOption {
	return func(c *Cipher) {
		c.stretcher = s
	}
}

// WithRandom sets the IV source. The default is a new RandomSource.
func WithRandom(r io.Reader) CipherOption {
	return func(c *Cipher) {
		if r != nil {
			c.random = r
		}
	}
}

func WithCipherLogger(l *zap.Logger) CipherOption {
	return func(c *Cipher) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCipher creates an authenticated cipher for the given block cipher and
// mode. Unknown identifiers are a configuration error.
func NewCipher(name types.CipherName, mode types.BlockMode, opts ...CipherOption) (*Cipher, error) {
	block, ok := blockCiphers[name]
	if !ok {
		return nil, types.ConfigurationError{Field: "cipher", Reason: fmt.Sprintf("has unsupported value %q", name)}
	}
	seal, ok := blockModes[mode]
	if !ok {
		return nil, types.ConfigurationError{Field: "mode", Reason: fmt.Sprintf("has unsupported value %q", mode)}
	}

	c := &Cipher{
		name:      name,
		mode:      mode,
		block:     block,
		seal:      seal,
		stretcher: NewStretcher(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.random == nil {
		c.random = NewRandomSource(WithRandomLogger(c.logger))
	}
	return c, nil
}

func (c *Cipher) Name() types.CipherName {
	return c.name
}

func (c *Cipher) Mode() types.BlockMode {
	return c.mode
}

// IVSize is the number of IV bytes embedded in every blob
func (c *Cipher) IVSize() int {
	return c.block.BlockSize
}

// Encrypt seals plaintext under secret
func (c *Cipher) Encrypt(plaintext, secret []byte) ([]byte, error) {
	var (
		key     string = c.stretcher.Stretch(secret)
		payload []byte
		iv      []byte = make([]byte, c.IVSize())
		block   cipher.Block
		err     error
	)

	payload = make([]byte, 0, types.STRETCHED_KEY_LENGTH+1+len(plaintext))
	payload = append(payload, Sign(plaintext, key)...)
	payload = append(payload, types.SEPARATOR...)
	payload = append(payload, plaintext...)
	payload = PadZero(payload, c.block.BlockSize)

	if _, err = io.ReadFull(c.random, iv); err != nil {
		return nil, types.CipherError{Op: "encrypt", Err: fmt.Errorf("iv generation: %w", err)}
	}

	if block, err = c.newBlock(key); err != nil {
		return nil, types.CipherError{Op: "encrypt", Err: err}
	}

	c.seal.Seal(block, iv, payload, payload)
	return StoreIV(payload, iv, key)
}

// Decrypt opens a blob produced by Encrypt with the same secret
func (c *Cipher) Decrypt(blob, secret []byte) ([]byte, error) {
	var (
		key       string = c.stretcher.Stretch(secret)
		iv, raw   []byte
		block     cipher.Block
		err       error
		separator int
	)

	if iv, raw, err = ExtractIV(blob, c.IVSize(), key); err != nil {
		c.logger.Debug("decrypt failed", zap.Error(err))
		return nil, err
	}

	if len(raw)%c.block.BlockSize != 0 {
		err = types.CipherError{
			Op:  "decrypt",
			Err: fmt.Errorf("ciphertext of %d bytes is not a multiple of the %d byte block size", len(raw), c.block.BlockSize),
		}
		c.logger.Debug("decrypt failed", zap.Error(err))
		return nil, err
	}

	if block, err = c.newBlock(key); err != nil {
		return nil, types.CipherError{Op: "decrypt", Err: err}
	}
	c.seal.Open(block, iv, raw, raw)

	if separator = bytes.Index(raw, []byte(types.SEPARATOR)); separator < 0 {
		err = types.CipherError{Op: "decrypt", Err: errMissingSeparator}
		c.logger.Debug("decrypt failed", zap.Error(err))
		return nil, err
	}

	tag, data := raw[:separator], raw[separator+1:]
	if plaintext, ok := c.unpad(tag, data, key); ok {
		return plaintext, nil
	}

	err = types.AuthenticationError{}
	c.logger.Debug("decrypt failed", zap.Error(err))
	return nil, err
}

// unpad strips the implicit zero padding from data. Padding never reaches a
// full block, so only the last BlockSize-1 trailing NUL bytes are candidates.
// Candidates are tried shortest first and the first whose tag verifies wins.
func (c *Cipher) unpad(tag, data []byte, key string) ([]byte, bool) {
	var (
		trimmed  int = len(bytes.TrimRight(data, "\x00"))
		shortest int = len(data) - (c.block.BlockSize - 1)
	)
	if shortest < trimmed {
		shortest = trimmed
	}
	for n := shortest; n <= len(data); n++ {
		if ValidTag(data[:n], tag, key) {
			return data[:n], true
		}
	}
	return nil, false
}

func (c *Cipher) newBlock(key string) (cipher.Block, error) {
	if len(key) < c.block.KeySize {
		return nil, fmt.Errorf("stretched key of %d bytes is shorter than the %d bytes %s requires", len(key), c.block.KeySize, c.name)
	}
	return c.block.New([]byte(key[:c.block.KeySize]))
}

// Sign returns the hex encoded HMAC-SHA1 of message keyed with key
func Sign(message []byte, key string) []byte {
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write(message)
	sum := mac.Sum(nil)
	out := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(out, sum)
	return out
}

// ValidTag compares tag against the expected tag for message in constant time
func ValidTag(message, tag []byte, key string) bool {
	return hmac.Equal(tag, Sign(message, key))
}
