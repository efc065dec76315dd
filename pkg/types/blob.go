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

import (
	"encoding/base64"
)

var b64enc = base64.StdEncoding.Strict()

// Blob is the output of the authenticated cipher: the encrypted payload with
// the IV scattered through it.
//
// The raw bytes carry no header of any kind. Decrypting a blob requires the
// same key, cipher and mode used to produce it.
//
// For text channels (configuration files, the command line) a Blob is
// represented as strict standard base64.
type Blob []byte

// IsZero - returns true if the blob is empty
func (b Blob) IsZero() bool {
	return len(b) == 0
}

// String - convert a Blob to its base64 text form
func (b Blob) String() string {
	if b.IsZero() {
		return ""
	}
	return b64enc.EncodeToString(b)
}

// MarshalText - convert a Blob to a base64 encoded byte slice
func (b Blob) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText - decode a base64 encoded byte slice into a Blob
func (b *Blob) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*b = nil
		return nil
	}
	dst := make([]byte, b64enc.DecodedLen(len(data)))
	n, err := b64enc.Decode(dst, data)
	if err != nil {
		return InvalidBlobError{Err: err}
	}
	*b = dst[:n]
	return nil
}

// ParseBlob decodes the base64 text form of a blob
func ParseBlob(s string) (Blob, error) {
	var b Blob
	err := b.UnmarshalText([]byte(s))
	return b, err
}

type InvalidBlobError struct {
	Err error
}

func (e InvalidBlobError) Error() string {
	return "invalid blob encoding: " + e.Err.Error()
}

func (e InvalidBlobError) Unwrap() error {
	return e.Err
}
