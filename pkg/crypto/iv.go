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
	"fmt"

	"github.com/notapipeline/cryptkeeper/pkg/types"
)

// The IV is not stored as a prefix. Each IV byte is inserted into the
// ciphertext at the offset named by the matching hex digit of the stretched
// key, and pulled back out in reverse order on decryption.

// StoreIV scatters iv through data using the leading hex digits of key.
//
// data is not modified; the returned slice is len(data)+len(iv) long.
func StoreIV(data, iv []byte, key string) ([]byte, error) {
	if len(key) < len(iv) {
		return nil, types.CipherError{
			Op:  "encrypt",
			Err: fmt.Errorf("key of %d digits cannot place an iv of %d bytes", len(key), len(iv)),
		}
	}

	out := make([]byte, len(data), len(data)+len(iv))
	copy(out, data)
	for i, b := range iv {
		offset, err := hexValue(key[i])
		if err != nil {
			return nil, types.CipherError{Op: "encrypt", Err: err}
		}
		if offset > len(out) {
			return nil, types.CipherError{
				Op:  "encrypt",
				Err: fmt.Errorf("iv offset %d beyond buffer of %d bytes", offset, len(out)),
			}
		}
		out = append(out, 0)
		copy(out[offset+1:], out[offset:])
		out[offset] = b
	}
	return out, nil
}

// ExtractIV reverses StoreIV, returning the size byte IV and the remaining
// ciphertext. data is not modified.
func ExtractIV(data []byte, size int, key string) (iv, rest []byte, err error) {
	if len(key) < size {
		return nil, nil, types.IVExtractionError{Expected: size, Actual: 0}
	}

	rest = make([]byte, len(data))
	copy(rest, data)
	iv = make([]byte, size)
	for i := size - 1; i >= 0; i-- {
		var offset int
		if offset, err = hexValue(key[i]); err != nil {
			return nil, nil, types.IVExtractionError{Expected: size, Actual: size - 1 - i}
		}
		if offset >= len(rest) {
			return nil, nil, types.IVExtractionError{Expected: size, Actual: size - 1 - i}
		}
		iv[i] = rest[offset]
		rest = append(rest[:offset], rest[offset+1:]...)
	}
	return iv, rest, nil
}

func hexValue(c byte) (int, error) {
	switch {
	case '0' <= c && c <= '9':
		return int(c - '0'), nil
	case 'a' <= c && c <= 'f':
		return int(c-'a') + 10, nil
	case 'A' <= c && c <= 'F':
		return int(c-'A') + 10, nil
	}
	return 0, fmt.Errorf("invalid hex digit %q in key", c)
}
