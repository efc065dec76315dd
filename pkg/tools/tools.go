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
package tools

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"
	"github.com/twpayne/go-pinentry"
)

var (
	ErrCancelled        = errors.New("cancelled")
	ErrNoPassword       = errors.New("no password provided")
	ErrPasswordMismatch = errors.New("passwords do not match")
)

// ReadPassword reads a password from the user via STDIN without echo
func ReadPassword(prompt string) ([]byte, error) {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	defer line.Close()
	var (
		password string
		err      error
	)
	if password, err = line.PasswordPrompt(prompt); err != nil {
		if errors.Is(err, liner.ErrPromptAborted) {
			return nil, ErrCancelled
		}
		return nil, err
	}
	return []byte(password), nil
}

// ReadLine reads a line of text from the user via STDIN
func ReadLine(prompt string) ([]byte, error) {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	defer line.Close()
	var (
		text string
		err  error
	)
	if text, err = line.Prompt(prompt); err != nil {
		if errors.Is(err, liner.ErrPromptAborted) {
			return nil, ErrCancelled
		}
		return nil, err
	}
	return []byte(text), nil
}

// ReadFrom reads the first line from r with the line ending removed. It is
// used for piped input where no prompt should be shown.
func ReadFrom(r io.Reader) ([]byte, error) {
	reader := bufio.NewReader(r)
	text, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	text = strings.TrimRight(text, "\r\n")
	if text == "" && errors.Is(err, io.EOF) {
		return nil, io.ErrUnexpectedEOF
	}
	return []byte(text), nil
}

// GetPassword gets a password from the user
//
// This is a mockable entry point for testing and wraps the password function.
var GetPassword func(title, description, prompt string) ([]byte, error) = password

// GetNewPassword asks for a password twice and fails unless both entries
// match.
func GetNewPassword(title string) ([]byte, error) {
	first, err := GetPassword(title, "Enter the password", "Password: ")
	if err != nil {
		return nil, err
	}
	second, err := GetPassword(title, "Enter the password again", "Confirm: ")
	if err != nil {
		return nil, err
	}
	if string(first) != string(second) {
		return nil, ErrPasswordMismatch
	}
	return first, nil
}

// password asks the user for a password using pinentry if available and
// falls back to stdin if not.
func password(title, description, prompt string) ([]byte, error) {
	var (
		err         error
		client      *pinentry.Client
		password    string
		usePinentry bool = true
	)

	if client, err = GetPinentry(
		pinentry.WithBinaryNameFromGnuPGAgentConf(),
		pinentry.WithDesc(description),
		pinentry.WithGPGTTY(),
		pinentry.WithPrompt(prompt),
		pinentry.WithTitle(title),
	); err != nil {
		var b []byte
		if b, err = readPassword(prompt); err != nil {
			return nil, err
		}
		password = string(b)
		usePinentry = false
	}

	if usePinentry {
		defer client.Close()
		if password, _, err = client.GetPIN(); err != nil {
			if pinentry.IsCancelled(err) {
				return nil, ErrCancelled
			}
			return nil, fmt.Errorf("pinentry: %w", err)
		}
	}
	password = strings.TrimSpace(password)
	if password == "" {
		return nil, ErrNoPassword
	}
	return []byte(password), nil
}

// GetPinentry gets a pinentry client
//
// This is a mockable entry point for testing and wraps the pinentry client.
var GetPinentry func(options ...pinentry.ClientOption) (c *pinentry.Client, err error) = func(options ...pinentry.ClientOption) (c *pinentry.Client, err error) {
	return pinentry.NewClient(options...)
}

var readPassword func(prompt string) ([]byte, error) = func(prompt string) ([]byte, error) {
	return ReadPassword(prompt)
}
