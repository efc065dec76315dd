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
	"crypto/md5"
	cryptorand "crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"sync"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const DefaultEntropyDevice = "/dev/urandom"

// These are referenced as variables so tests can replace them
var (
	openDevice func(name string) (io.ReadCloser, error) = func(name string) (io.ReadCloser, error) {
		return os.Open(name)
	}
	clock func() time.Time = time.Now
)

// RandomSource hands out random bytes and never fails.
//
// Bytes come from the first of these that can supply them:
//
//  1. the primary CSPRNG (crypto/rand unless replaced)
//  2. the entropy device, opened and closed on each read
//  3. a deterministic MD5 chain seeded from the clock and the process id
//
// The third branch is not cryptographically secure and is logged as an error
// whenever it is used. Its state belongs to the instance and is mutex guarded.
type RandomSource struct {
	primary io.Reader
	device  string
	retries uint64
	logger  *zap.Logger

	mu    sync.Mutex
	state []byte
}

type RandomOption func(*RandomSource)

// WithPrimary replaces the primary CSPRNG. A nil reader skips it entirely.
func WithPrimary(r io.Reader) RandomOption {
	return func(s *RandomSource) {
		s.primary = r
	}
}

// WithEntropyDevice sets the device read when the primary source fails. An
// empty name skips the device.
func WithEntropyDevice(name string) RandomOption {
	return func(s *RandomSource) {
		s.device = name
	}
}

// WithDeviceRetries sets how many times a failed device read is retried
func WithDeviceRetries(n uint64) RandomOption {
	return func(s *RandomSource) {
		s.retries = n
	}
}

func WithRandomLogger(l *zap.Logger) RandomOption {
	return func(s *RandomSource) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewRandomSource(opts ...RandomOption) *RandomSource {
	s := &RandomSource{
		primary: cryptorand.Reader,
		device:  DefaultEntropyDevice,
		retries: 2,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state = []byte(strconv.FormatInt(clock().UnixNano(), 10) + strconv.Itoa(os.Getpid()))
	return s
}

// Read fills p completely. It always returns len(p), nil.
func (s *RandomSource) Read(p []byte) (int, error) {
	copy(p, s.Bytes(len(p)))
	return len(p), nil
}

// Bytes returns n random bytes
func (s *RandomSource) Bytes(n int) []byte {
	var (
		b   []byte = make([]byte, n)
		err error
	)
	if n == 0 {
		return b
	}

	if s.primary != nil {
		if _, err = io.ReadFull(s.primary, b); err == nil {
			return b
		}
		s.logger.Warn("primary random source failed, reading entropy device",
			zap.String("device", s.device), zap.Error(err))
	}

	if s.device != "" {
		if b, err = s.fromDevice(n); err == nil {
			return b
		}
	}

	s.logger.Error("no secure random source available, using deterministic fallback",
		zap.String("device", s.device), zap.Error(err))
	return s.fallback(n)
}

func (s *RandomSource) fromDevice(n int) ([]byte, error) {
	var out []byte = make([]byte, n)
	operation := func() error {
		f, err := openDevice(s.device)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
				return backoff.Permanent(err)
			}
			return err
		}
		defer f.Close()

		if _, err = io.ReadFull(f, out); err != nil {
			return fmt.Errorf("short read from %s: %w", s.device, err)
		}
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(10*time.Millisecond), s.retries)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RandomSource) fallback(n int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []byte = make([]byte, 0, n+md5.Size)
	for len(out) < n {
		seed := append([]byte(strconv.FormatInt(clock().UnixNano(), 10)), s.state...)
		next := md5.Sum(seed)
		s.state = []byte(hex.EncodeToString(next[:]))
		block := md5.Sum(s.state)
		out = append(out, block[:]...)
	}
	return out[:n]
}
