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
	"errors"
	"fmt"
)

// Sentinels for the failure classes returned by the crypto packages. Every
// typed error below matches exactly one of these through errors.Is.
var (
	ErrConfigurationInvalid   = errors.New("configuration invalid")
	ErrEnvironmentUnsupported = errors.New("environment unsupported")
	ErrIVExtractionFailed     = errors.New("iv extraction failed")
	ErrCipherOperationFailed  = errors.New("cipher operation failed")
	ErrAuthenticationFailed   = errors.New("authentication failed")
	ErrHashGenerationFailed   = errors.New("hash generation failed")
)

// ConfigurationError is raised at construction when a required setting is
// missing or unusable.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e ConfigurationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid configuration: missing required field %q", e.Field)
	}
	return fmt.Sprintf("invalid configuration: field %q %s", e.Field, e.Reason)
}

func (e ConfigurationError) Is(target error) bool {
	return target == ErrConfigurationInvalid
}

// UnsupportedEnvironmentError is raised at construction when a required
// cryptographic primitive does not behave as expected.
type UnsupportedEnvironmentError struct {
	Primitive string
	Err       error
}

func (e UnsupportedEnvironmentError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("unsupported environment: %s unavailable", e.Primitive)
	}
	return fmt.Sprintf("unsupported environment: %s unavailable: %v", e.Primitive, e.Err)
}

func (e UnsupportedEnvironmentError) Is(target error) bool {
	return target == ErrEnvironmentUnsupported
}

func (e UnsupportedEnvironmentError) Unwrap() error {
	return e.Err
}

// IVExtractionError signals a blob that is too short to hold the embedded IV,
// or one produced with a different key.
type IVExtractionError struct {
	Expected, Actual int
}

func (e IVExtractionError) Error() string {
	return fmt.Sprintf("unable to extract iv: expected %d bytes, recovered %d", e.Expected, e.Actual)
}

func (e IVExtractionError) Is(target error) bool {
	return target == ErrIVExtractionFailed
}

// CipherError wraps a failure of the underlying block cipher, or a decrypted
// payload that lacks the tag separator.
type CipherError struct {
	Op  string
	Err error
}

func (e CipherError) Error() string {
	return fmt.Sprintf("%s: cipher operation failed: %v", e.Op, e.Err)
}

func (e CipherError) Is(target error) bool {
	return target == ErrCipherOperationFailed
}

func (e CipherError) Unwrap() error {
	return e.Err
}

// AuthenticationError is returned when the HMAC tag does not verify. A wrong
// key and a tampered blob are reported identically.
type AuthenticationError struct{}

func (e AuthenticationError) Error() string {
	return "decrypt: authentication failed"
}

func (e AuthenticationError) Is(target error) bool {
	return target == ErrAuthenticationFailed
}

// HashGenerationError is returned when the bcrypt primitive fails or yields
// an implausibly short hash.
type HashGenerationError struct {
	Length int
	Err    error
}

func (e HashGenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("hash generation failed: %v", e.Err)
	}
	return fmt.Sprintf("hash generation failed: hash of %d characters is too short", e.Length)
}

func (e HashGenerationError) Is(target error) bool {
	return target == ErrHashGenerationFailed
}

func (e HashGenerationError) Unwrap() error {
	return e.Err
}
