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
	"errors"
	"fmt"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notapipeline/cryptkeeper/pkg/types"
)

// fast keeps the tests quick; the full round count is exercised separately
var fast CipherOption = WithStretcher(Stretcher{Rounds: 16})

func newTestCipher(t *testing.T, name types.CipherName, mode types.BlockMode, opts ...CipherOption) *Cipher {
	t.Helper()
	c, err := NewCipher(name, mode, append([]CipherOption{fast}, opts...)...)
	require.NoError(t, err)
	return c
}

func isDecryptFailure(err error) bool {
	return errors.Is(err, types.ErrAuthenticationFailed) ||
		errors.Is(err, types.ErrIVExtractionFailed) ||
		errors.Is(err, types.ErrCipherOperationFailed)
}

func TestEncryptDecryptAttackAtDawn(t *testing.T) {
	c, err := NewCipher(types.Rijndael128, types.ModeCBC)
	require.NoError(t, err)

	blob, err := c.Encrypt([]byte("attack at dawn"), []byte("correct horse"))
	require.NoError(t, err)

	plaintext, err := c.Decrypt(blob, []byte("correct horse"))
	require.NoError(t, err)
	assert.Equal(t, "attack at dawn", string(plaintext))
}

func TestRoundTripAllCiphersAndModes(t *testing.T) {
	plaintexts := [][]byte{
		{},
		[]byte("a"),
		[]byte("attack at dawn"),
		[]byte("contains: a separator: or two"),
		[]byte("ends in nul\x00\x00"),
		bytes.Repeat([]byte{0}, 20),
		bytes.Repeat([]byte("0123456789abcdef"), 8),
	}

	for _, info := range SupportedCiphers() {
		for _, mode := range SupportedModes() {
			t.Run(fmt.Sprintf("%s/%s", info.Name, mode), func(t *testing.T) {
				c := newTestCipher(t, info.Name, mode)
				assert.Equal(t, info.BlockSize, c.IVSize())
				for _, p := range plaintexts {
					blob, err := c.Encrypt(p, []byte("secret"))
					require.NoError(t, err)
					assert.Equal(t, len(PadZero(make([]byte, 41+len(p)), info.BlockSize))+info.BlockSize, len(blob))

					out, err := c.Decrypt(blob, []byte("secret"))
					require.NoError(t, err)
					assert.True(t, bytes.Equal(p, out), "expected %q got %q", p, out)
				}
			})
		}
	}
}

func TestEncryptIsNotDeterministic(t *testing.T) {
	c := newTestCipher(t, types.AES256, types.ModeCBC)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		blob, err := c.Encrypt([]byte("identical-plaintext"), []byte("secret"))
		require.NoError(t, err)
		if seen[string(blob)] {
			t.Fatalf("identical blob produced at iteration %d", i)
		}
		seen[string(blob)] = true
	}
}

func TestEncryptLayoutWithFixedIV(t *testing.T) {
	var (
		iv        []byte = bytes.Repeat([]byte{0xaa}, 16)
		stretcher        = Stretcher{Rounds: 16}
		key       string = stretcher.Stretch([]byte("secret"))
	)
	c := newTestCipher(t, types.AES128, types.ModeCBC, WithRandom(bytes.NewReader(iv)))

	blob, err := c.Encrypt([]byte("hello"), []byte("secret"))
	require.NoError(t, err)

	gotIV, raw, err := ExtractIV(blob, 16, key)
	require.NoError(t, err)
	assert.Equal(t, iv, gotIV)
	assert.Len(t, raw, 48)
}

func TestDecryptEmptyBlobFailsIVExtraction(t *testing.T) {
	c := newTestCipher(t, types.Rijndael128, types.ModeCBC)
	_, err := c.Decrypt([]byte{}, []byte("correct horse"))
	assert.ErrorIs(t, err, types.ErrIVExtractionFailed)

	var ivErr types.IVExtractionError
	require.True(t, errors.As(err, &ivErr))
	assert.Equal(t, 16, ivErr.Expected)
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	c := newTestCipher(t, types.Rijndael128, types.ModeCBC)
	for i := 0; i < 20; i++ {
		blob, err := c.Encrypt([]byte("attack at dawn"), []byte(fmt.Sprintf("key-%d", i)))
		require.NoError(t, err)

		_, err = c.Decrypt(blob, []byte(fmt.Sprintf("other-%d", i)))
		require.Error(t, err)
		assert.True(t, isDecryptFailure(err), "unexpected error %v", err)
	}
}

// A flipped byte is reported as an authentication failure unless it destroys
// the tag separator, which is a cipher failure. Nothing else may surface.
func TestDecryptDetectsTampering(t *testing.T) {
	for _, name := range []types.CipherName{types.AES256, types.Blowfish} {
		for _, mode := range SupportedModes() {
			t.Run(fmt.Sprintf("%s/%s", name, mode), func(t *testing.T) {
				c := newTestCipher(t, name, mode)
				var authFailures, separatorLost int
				for k := 0; k < 5; k++ {
					secret := []byte(fmt.Sprintf("secret-%d", k))
					blob, err := c.Encrypt([]byte("SUPER_SECRET_DATABASE_PASSWORD"), secret)
					require.NoError(t, err)

					for i := range blob {
						tampered := append([]byte(nil), blob...)
						tampered[i] ^= 0x01
						_, err := c.Decrypt(tampered, secret)
						require.Error(t, err, "flipping byte %d went unnoticed", i)
						assert.NotErrorIs(t, err, types.ErrIVExtractionFailed, "byte %d", i)

						if errors.Is(err, types.ErrCipherOperationFailed) {
							assert.ErrorIs(t, err, errMissingSeparator, "byte %d", i)
							separatorLost++
							continue
						}
						assert.ErrorIs(t, err, types.ErrAuthenticationFailed, "byte %d", i)
						authFailures++
					}
				}
				assert.Greater(t, authFailures, separatorLost)
			})
		}
	}
}

func TestDecryptTruncatedBlob(t *testing.T) {
	c := newTestCipher(t, types.Blowfish, types.ModeCBC)
	blob, err := c.Encrypt([]byte("attack at dawn"), []byte("secret"))
	require.NoError(t, err)

	_, err = c.Decrypt(blob[:len(blob)-3], []byte("secret"))
	assert.ErrorIs(t, err, types.ErrCipherOperationFailed)

	_, err = c.Decrypt(blob[:4], []byte("secret"))
	assert.ErrorIs(t, err, types.ErrIVExtractionFailed)
}

func TestDecryptWithoutSeparator(t *testing.T) {
	var (
		stretcher        = Stretcher{Rounds: 16}
		key       string = stretcher.Stretch([]byte("secret"))
		iv        []byte = make([]byte, 16)
		payload   []byte = bytes.Repeat([]byte("x"), 48)
	)
	c := newTestCipher(t, types.AES128, types.ModeCBC)

	block, err := c.newBlock(key)
	require.NoError(t, err)
	c.seal.Seal(block, iv, payload, payload)
	blob, err := StoreIV(payload, iv, key)
	require.NoError(t, err)

	_, err = c.Decrypt(blob, []byte("secret"))
	assert.ErrorIs(t, err, types.ErrCipherOperationFailed)
	assert.ErrorIs(t, err, errMissingSeparator)
}

func TestEncryptFailsWithoutRandomness(t *testing.T) {
	c := newTestCipher(t, types.AES128, types.ModeCTR, WithRandom(iotest.ErrReader(errors.New("no entropy"))))
	_, err := c.Encrypt([]byte("data"), []byte("secret"))
	assert.ErrorIs(t, err, types.ErrCipherOperationFailed)
}

func TestNewCipherRejectsUnknownIdentifiers(t *testing.T) {
	_, err := NewCipher("rijndael-256", types.ModeCBC)
	assert.ErrorIs(t, err, types.ErrConfigurationInvalid)
	assert.EqualError(t, err, `invalid configuration: field "cipher" has unsupported value "rijndael-256"`)

	_, err = NewCipher(types.AES128, "ecb")
	assert.ErrorIs(t, err, types.ErrConfigurationInvalid)
}

func TestCipherIsSafeForConcurrentUse(t *testing.T) {
	c := newTestCipher(t, types.Twofish, types.ModeCBC)
	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := []byte(fmt.Sprintf("message %d", i))
			blob, err := c.Encrypt(p, []byte("shared"))
			if err != nil {
				errs <- err
				return
			}
			out, err := c.Decrypt(blob, []byte("shared"))
			if err != nil {
				errs <- err
				return
			}
			if !bytes.Equal(p, out) {
				errs <- fmt.Errorf("expected %q got %q", p, out)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestSignAndValidTag(t *testing.T) {
	tag := Sign([]byte("message"), "key")
	assert.Len(t, tag, 40)
	assert.True(t, ValidTag([]byte("message"), tag, "key"))
	assert.False(t, ValidTag([]byte("message!"), tag, "key"))
	assert.False(t, ValidTag([]byte("message"), tag, "other"))
}
