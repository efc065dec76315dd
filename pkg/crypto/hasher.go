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
	"crypto/subtle"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/notapipeline/cryptkeeper/pkg/types"
)

// primitiveCheck confirms the local bcrypt primitive agrees with
// golang.org/x/crypto/bcrypt. It is a variable so tests can simulate an
// environment where the primitive is unusable.
var primitiveCheck func() error = checkPrimitive

func checkPrimitive() error {
	var password []byte = []byte("cryptkeeper self test")
	reference, err := bcrypt.GenerateFromPassword(password, bcrypt.MinCost)
	if err != nil {
		return err
	}
	local, err := crypt(password, string(reference))
	if err != nil {
		return err
	}
	if local != string(reference) {
		return fmt.Errorf("bcrypt primitive disagrees with reference implementation")
	}
	return nil
}

// PasswordHasher produces and verifies salted bcrypt hashes
type PasswordHasher struct {
	cost   int
	random io.Reader
	logger *zap.Logger
}

type HasherOption func(*PasswordHasher)

// WithSaltSource sets the reader salts are drawn from. The default is a new
// RandomSource.
func WithSaltSource(r io.Reader) HasherOption {
	return func(h *PasswordHasher) {
		if r != nil {
			h.random = r
		}
	}
}

func WithHasherLogger(l *zap.Logger) HasherOption {
	return func(h *PasswordHasher) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewPasswordHasher creates a hasher with the given bcrypt cost.
//
// It fails with types.UnsupportedEnvironmentError when the bcrypt primitive
// cannot be made to work. That is a permanent condition, not a per call error.
func NewPasswordHasher(cost int, opts ...HasherOption) (*PasswordHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, types.ConfigurationError{
			Field:  "hash_rounds",
			Reason: fmt.Sprintf("must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, cost),
		}
	}

	if err := primitiveCheck(); err != nil {
		return nil, types.UnsupportedEnvironmentError{Primitive: "bcrypt", Err: err}
	}

	h := &PasswordHasher{
		cost:   cost,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.random == nil {
		h.random = NewRandomSource(WithRandomLogger(h.logger))
	}
	return h, nil
}

func (h *PasswordHasher) Cost() int {
	return h.cost
}

// Salt draws 16 fresh bytes and returns the "$2a$NN$<salt>" setting
func (h *PasswordHasher) Salt() (string, error) {
	var raw []byte = make([]byte, saltBytes)
	if _, err := io.ReadFull(h.random, raw); err != nil {
		return "", err
	}
	salt, err := EncodeSalt(raw)
	if err != nil {
		return "", err
	}
	return SaltSetting(h.cost, salt), nil
}

// Hash returns a new bcrypt hash of password
func (h *PasswordHasher) Hash(password string) (string, error) {
	var (
		s    string
		hash string
		err  error
	)

	if s, err = h.Salt(); err != nil {
		return "", types.HashGenerationError{Err: err}
	}

	if hash, err = crypt([]byte(password), s); err != nil {
		return "", types.HashGenerationError{Err: err}
	}

	if len(hash) <= minHashLength {
		return "", types.HashGenerationError{Length: len(hash)}
	}
	return hash, nil
}

// Verify reports whether password matches hash. A malformed hash never
// matches.
func (h *PasswordHasher) Verify(password, hash string) bool {
	candidate, err := crypt([]byte(password), hash)
	if err != nil {
		h.logger.Debug("unable to verify password", zap.Error(err))
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(hash)) == 1
}

// NeedsRehash reports whether hash was made with a different cost than the
// one this hasher is configured for, or cannot be read at all.
func (h *PasswordHasher) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost != h.cost
}
