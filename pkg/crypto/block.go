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
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"fmt"
	"sort"

	"golang.org/x/crypto/blowfish"
	"golang.org/x/crypto/cast5"
	"golang.org/x/crypto/twofish"
	"golang.org/x/crypto/xtea"

	"github.com/notapipeline/cryptkeeper/pkg/types"
)

// blockSpec describes a supported block cipher. KeySize bytes are taken from
// the front of the stretched key, matching the way mcrypt truncated keys
// longer than the cipher accepts.
type blockSpec struct {
	KeySize   int
	BlockSize int
	New       func(key []byte) (cipher.Block, error)
}

var blockCiphers = map[types.CipherName]blockSpec{
	types.Rijndael128: {KeySize: 32, BlockSize: aes.BlockSize, New: aes.NewCipher},
	types.AES128:      {KeySize: 16, BlockSize: aes.BlockSize, New: aes.NewCipher},
	types.AES192:      {KeySize: 24, BlockSize: aes.BlockSize, New: aes.NewCipher},
	types.AES256:      {KeySize: 32, BlockSize: aes.BlockSize, New: aes.NewCipher},
	types.Blowfish: {KeySize: 40, BlockSize: blowfish.BlockSize, New: func(key []byte) (cipher.Block, error) {
		return blowfish.NewCipher(key)
	}},
	types.Twofish: {KeySize: 32, BlockSize: twofish.BlockSize, New: func(key []byte) (cipher.Block, error) {
		return twofish.NewCipher(key)
	}},
	types.Cast128: {KeySize: 16, BlockSize: cast5.BlockSize, New: func(key []byte) (cipher.Block, error) {
		return cast5.NewCipher(key)
	}},
	types.TripleDES: {KeySize: 24, BlockSize: des.BlockSize, New: des.NewTripleDESCipher},
	types.XTEA: {KeySize: 16, BlockSize: xtea.BlockSize, New: func(key []byte) (cipher.Block, error) {
		return xtea.NewCipher(key)
	}},
}

// modeSpec seals and opens a buffer whose length is a multiple of the block
// size. dst and src may overlap entirely.
type modeSpec struct {
	Seal func(b cipher.Block, iv, dst, src []byte)
	Open func(b cipher.Block, iv, dst, src []byte)
}

// All feedback modes feed back a full block.
var blockModes = map[types.BlockMode]modeSpec{
	types.ModeCBC: {
		Seal: func(b cipher.Block, iv, dst, src []byte) {
			cipher.NewCBCEncrypter(b, iv).CryptBlocks(dst, src)
		},
		Open: func(b cipher.Block, iv, dst, src []byte) {
			cipher.NewCBCDecrypter(b, iv).CryptBlocks(dst, src)
		},
	},
	types.ModeCFB: {
		Seal: func(b cipher.Block, iv, dst, src []byte) {
			cipher.NewCFBEncrypter(b, iv).XORKeyStream(dst, src)
		},
		Open: func(b cipher.Block, iv, dst, src []byte) {
			cipher.NewCFBDecrypter(b, iv).XORKeyStream(dst, src)
		},
	},
	types.ModeOFB: {
		Seal: func(b cipher.Block, iv, dst, src []byte) {
			cipher.NewOFB(b, iv).XORKeyStream(dst, src)
		},
		Open: func(b cipher.Block, iv, dst, src []byte) {
			cipher.NewOFB(b, iv).XORKeyStream(dst, src)
		},
	},
	types.ModeCTR: {
		Seal: func(b cipher.Block, iv, dst, src []byte) {
			cipher.NewCTR(b, iv).XORKeyStream(dst, src)
		},
		Open: func(b cipher.Block, iv, dst, src []byte) {
			cipher.NewCTR(b, iv).XORKeyStream(dst, src)
		},
	},
}

// CipherInfo summarises a supported cipher for display
type CipherInfo struct {
	Name      types.CipherName
	KeySize   int
	BlockSize int
}

// SupportedCiphers lists every cipher identifier, sorted by name
func SupportedCiphers() []CipherInfo {
	var out []CipherInfo = make([]CipherInfo, 0, len(blockCiphers))
	for name, spec := range blockCiphers {
		out = append(out, CipherInfo{Name: name, KeySize: spec.KeySize, BlockSize: spec.BlockSize})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SupportedModes lists every block mode identifier, sorted by name
func SupportedModes() []types.BlockMode {
	var out []types.BlockMode = make([]types.BlockMode, 0, len(blockModes))
	for mode := range blockModes {
		out = append(out, mode)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsSupportedCipher reports whether name is a known cipher identifier
func IsSupportedCipher(name types.CipherName) bool {
	_, ok := blockCiphers[name]
	return ok
}

// IsSupportedMode reports whether mode is a known block mode identifier
func IsSupportedMode(mode types.BlockMode) bool {
	_, ok := blockModes[mode]
	return ok
}

// PadZero extends src with NUL bytes up to a multiple of size. Unlike PKCS7
// nothing is added when src is already aligned, so the padding length is
// implicit and always below size.
func PadZero(src []byte, size int) []byte {
	if size <= 0 {
		panic(fmt.Sprintf("cannot pad to a block size of %d", size))
	}
	n := (size - len(src)%size) % size
	padded := make([]byte, len(src)+n)
	copy(padded, src)
	return padded
}
