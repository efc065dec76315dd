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
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
)

const DefaultStretchRounds = 5000

// Stretcher normalises an arbitrary secret into a 40 character hex digest.
//
// The reference loop evaluates its body once before the first round check so
// it performs Rounds+1 HMAC evaluations. Blobs written by it can only be read
// with the same count, so that is the default. Set Exact to run exactly Rounds
// evaluations.
type Stretcher struct {
	Rounds int
	Exact  bool
}

// NewStretcher returns a stretcher using the reference round count
func NewStretcher() Stretcher {
	return Stretcher{Rounds: DefaultStretchRounds}
}

// Iterations returns the number of HMAC evaluations Stretch performs
func (s Stretcher) Iterations() int {
	if s.Exact {
		return s.Rounds
	}
	return s.Rounds + 1
}

// Stretch derives the stretched key for secret.
//
//	h0     = hex(sha1(secret))
//	h(i+1) = hex(hmac-sha1(key=secret, data=h(i)))
func (s Stretcher) Stretch(secret []byte) string {
	sum := sha1.Sum(secret)
	key := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(key, sum[:])

	mac := hmac.New(sha1.New, secret)
	for i := 0; i < s.Iterations(); i++ {
		mac.Reset()
		mac.Write(key)
		hex.Encode(key, mac.Sum(nil))
	}
	return string(key)
}
