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
package types

// CipherName identifies the block cipher used by the authenticated cipher.
//
// Cipher names follow the libmcrypt identifiers.
type CipherName string

// BlockMode identifies the block cipher mode of operation.
//
// cfb and ofb are the full block modes from crypto/cipher, equivalent to
// mcrypt's ncfb and nofb. mcrypt's own cfb and ofb use 8 bit feedback and are
// not supported.
type BlockMode string

const (
	Rijndael128 CipherName = "rijndael-128"
	AES128      CipherName = "aes-128"
	AES192      CipherName = "aes-192"
	AES256      CipherName = "aes-256"
	Blowfish    CipherName = "blowfish"
	Twofish     CipherName = "twofish"
	Cast128     CipherName = "cast-128"
	TripleDES   CipherName = "tripledes"
	XTEA        CipherName = "xtea"
)

const (
	ModeCBC BlockMode = "cbc"
	ModeCFB BlockMode = "cfb"
	ModeOFB BlockMode = "ofb"
	ModeCTR BlockMode = "ctr"
)

const (
	SEPARATOR = ":"
	// Length of a hex encoded SHA1 digest
	STRETCHED_KEY_LENGTH = 40
)

func (c CipherName) String() string {
	return string(c)
}

func (m BlockMode) String() string {
	return string(m)
}
