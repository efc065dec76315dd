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
	"crypto/aes"
	"crypto/cipher"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/notapipeline/cryptkeeper/pkg/types"
)

func TestPadZero(t *testing.T) {
	testCases := []struct {
		test     string
		src      []byte
		size     int
		expected []byte
	}{
		{
			test:     "hello padded to 8 bytes",
			src:      []byte("hello"),
			size:     8,
			expected: []byte("hello\x00\x00\x00"),
		},
		{
			test:     "aligned input is unchanged",
			src:      []byte("YELLOW SUBMARINE"),
			size:     16,
			expected: []byte("YELLOW SUBMARINE"),
		},
		{
			test:     "empty input stays empty",
			src:      []byte{},
			size:     16,
			expected: []byte{},
		},
		{
			test:     "tes padded to 4 bytes",
			src:      []byte("tes"),
			size:     4,
			expected: []byte("tes\x00"),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.test, func(t *testing.T) {
			padded := PadZero(tc.src, tc.size)
			if !bytes.Equal(padded, tc.expected) {
				t.Errorf("Expected %v but got %v", tc.expected, padded)
			}
		})
	}
}

func TestPadZeroPanicsOnInvalidSize(t *testing.T) {
	assert.Panics(t, func() { PadZero([]byte("x"), 0) })
}

func TestSupportedCiphersAndModes(t *testing.T) {
	ciphers := SupportedCiphers()
	assert.Len(t, ciphers, 9)
	for i := 1; i < len(ciphers); i++ {
		assert.Less(t, string(ciphers[i-1].Name), string(ciphers[i].Name))
	}
	for _, c := range ciphers {
		assert.True(t, IsSupportedCipher(c.Name))
		assert.LessOrEqual(t, c.KeySize, types.STRETCHED_KEY_LENGTH)
		assert.LessOrEqual(t, c.BlockSize, 16)
	}

	assert.Equal(t, []types.BlockMode{types.ModeCBC, types.ModeCFB, types.ModeCTR, types.ModeOFB}, SupportedModes())
	assert.False(t, IsSupportedCipher("rijndael-256"))
	assert.False(t, IsSupportedMode("ecb"))
}

// cfb and ofb must match the full block streams from crypto/cipher, not
// mcrypt's 8 bit feedback variants.
func TestFeedbackModesUseFullBlocks(t *testing.T) {
	var (
		key []byte = []byte("0123456789abcdef")
		iv  []byte = []byte("fedcba9876543210")
		src []byte = bytes.Repeat([]byte("attack at dawn!!"), 3)
	)
	block, err := aes.NewCipher(key)
	assert.NoError(t, err)

	tests := []struct {
		mode     types.BlockMode
		expected func() []byte
	}{
		{
			mode: types.ModeCFB,
			expected: func() []byte {
				out := make([]byte, len(src))
				cipher.NewCFBEncrypter(block, iv).XORKeyStream(out, src)
				return out
			},
		},
		{
			mode: types.ModeOFB,
			expected: func() []byte {
				out := make([]byte, len(src))
				cipher.NewOFB(block, iv).XORKeyStream(out, src)
				return out
			},
		},
	}

	for _, test := range tests {
		t.Run(string(test.mode), func(t *testing.T) {
			out := make([]byte, len(src))
			blockModes[test.mode].Seal(block, iv, out, src)
			assert.Equal(t, test.expected(), out)

			plain := make([]byte, len(src))
			blockModes[test.mode].Open(block, iv, plain, out)
			assert.Equal(t, src, plain)
		})
	}
}
