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
	"encoding/base64"
	"fmt"
	"strconv"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/blowfish"
)

// golang.org/x/crypto/bcrypt always draws its own salt, so the primitive is
// assembled here from the same blowfish key schedule it uses.

const (
	saltBytes       = 16
	encodedSaltLen  = 22
	encodedHashLen  = 31
	settingLen      = 7 + encodedSaltLen // $2a$NN$ + salt
	minHashLength   = 13
	bcryptHashBytes = 23
)

// "OrpheanBeholderScryDoubt"
var magicCipherData = []byte{
	0x4f, 0x72, 0x70, 0x68,
	0x65, 0x61, 0x6e, 0x42,
	0x65, 0x68, 0x6f, 0x6c,
	0x64, 0x65, 0x72, 0x53,
	0x63, 0x72, 0x79, 0x44,
	0x6f, 0x75, 0x62, 0x74,
}

var (
	// alphabet used by bcrypt itself when decoding salts and encoding digests
	bcryptEncoding = base64.NewEncoding("./ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789").
			WithPadding(base64.NoPadding)

	// alphabet used when turning fresh random bytes into salt characters
	saltEncoding = base64.NewEncoding("./0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz").
			WithPadding(base64.NoPadding)
)

// EncodeSalt packs 16 raw bytes into the 22 character salt alphabet. The last
// character only carries two bits of the input.
func EncodeSalt(raw []byte) (string, error) {
	if len(raw) != saltBytes {
		return "", fmt.Errorf("salt must be %d bytes, got %d", saltBytes, len(raw))
	}
	return saltEncoding.EncodeToString(raw), nil
}

// SaltSetting builds the canonical "$2a$NN$<salt>" setting string
func SaltSetting(cost int, salt string) string {
	return fmt.Sprintf("$2a$%02d$%s", cost, salt)
}

type setting struct {
	prefix string
	cost   int
	salt   string
}

// parseSetting accepts either a bare salt setting or a complete hash
func parseSetting(s string) (setting, error) {
	var st setting
	if len(s) < settingLen {
		return st, fmt.Errorf("bcrypt setting too short: %d characters", len(s))
	}
	if s[0] != '$' || s[1] != '2' || s[3] != '$' || s[6] != '$' {
		return st, fmt.Errorf("malformed bcrypt setting %q", s[:settingLen])
	}
	switch s[2] {
	case 'a', 'b', 'y':
	default:
		return st, fmt.Errorf("unsupported bcrypt version %q", s[1:3])
	}

	cost, err := strconv.Atoi(s[4:6])
	if err != nil {
		return st, fmt.Errorf("malformed bcrypt cost %q", s[4:6])
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return st, fmt.Errorf("bcrypt cost %d outside %d..%d", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	st.prefix = s[:4]
	st.cost = cost
	st.salt = s[7:settingLen]
	return st, nil
}

// crypt runs bcrypt over password using the cost and salt encoded in s,
// returning a full "$2a$NN$<salt><digest>" hash.
func crypt(password []byte, s string) (string, error) {
	st, err := parseSetting(s)
	if err != nil {
		return "", err
	}

	csalt, err := bcryptEncoding.DecodeString(st.salt)
	if err != nil {
		return "", fmt.Errorf("malformed bcrypt salt: %w", err)
	}

	// bcrypt includes the trailing NUL of the C string in the key
	ckey := append(password[:len(password):len(password)], 0)

	c, err := blowfish.NewSaltedCipher(ckey, csalt)
	if err != nil {
		return "", err
	}

	var rounds uint64 = 1 << uint(st.cost)
	for i := uint64(0); i < rounds; i++ {
		blowfish.ExpandKey(ckey, c)
		blowfish.ExpandKey(csalt, c)
	}

	data := make([]byte, len(magicCipherData))
	copy(data, magicCipherData)
	for i := 0; i < len(data); i += blowfish.BlockSize {
		for j := 0; j < 64; j++ {
			c.Encrypt(data[i:i+blowfish.BlockSize], data[i:i+blowfish.BlockSize])
		}
	}

	// The salt is re-encoded from the decoded bytes. The 22nd character only
	// carries two bits, so any other bits in the setting are dropped here.
	// Only 23 of the 24 encrypted bytes are encoded.
	return fmt.Sprintf("%s%02d$%s%s", st.prefix, st.cost,
		bcryptEncoding.EncodeToString(csalt),
		bcryptEncoding.EncodeToString(data[:bcryptHashBytes])), nil
}
