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
package keeper

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/notapipeline/cryptkeeper/pkg/config"
	"github.com/notapipeline/cryptkeeper/pkg/types"
)

func testConfig() *config.Config {
	c := config.New()
	c.Key = "correct horse"
	c.Cipher = types.Rijndael128
	c.Mode = types.ModeCBC
	c.HashRounds = 4
	c.StretchRounds = 32
	return c
}

func setupSuite(t *testing.T) func(t *testing.T) {
	return func(t *testing.T) {
		Reset()
	}
}

func TestKeeperAttackAtDawn(t *testing.T) {
	cfg := testConfig()
	cfg.StretchRounds = 0
	k, err := New(cfg)
	require.NoError(t, err)

	blob, err := k.Encrypt([]byte("attack at dawn"))
	require.NoError(t, err)

	plaintext, err := k.Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, "attack at dawn", string(plaintext))
}

func TestKeeperPasswordRoundTrip(t *testing.T) {
	cfg := testConfig()
	cfg.HashRounds = 10
	k, err := New(cfg)
	require.NoError(t, err)

	hash, err := k.HashPassword("p@ssw0rd!")
	require.NoError(t, err)
	assert.Regexp(t, `^\$2a\$10\$[./0-9A-Za-z]{22}.+$`, hash)
	assert.True(t, k.VerifyPassword("p@ssw0rd!", hash))
	assert.False(t, k.VerifyPassword("p@ssw0rd?", hash))
	assert.False(t, k.NeedsRehash(hash))
}

func TestKeeperStrings(t *testing.T) {
	k, err := New(testConfig())
	require.NoError(t, err)

	text, err := k.EncryptString("SUPER_SECRET_DATABASE_PASSWORD")
	require.NoError(t, err)

	_, err = types.ParseBlob(text)
	require.NoError(t, err)

	plaintext, err := k.DecryptString(text)
	require.NoError(t, err)
	assert.Equal(t, "SUPER_SECRET_DATABASE_PASSWORD", plaintext)

	_, err = k.DecryptString("not base64!")
	var blobErr types.InvalidBlobError
	assert.ErrorAs(t, err, &blobErr)

	_, err = k.DecryptString("")
	assert.ErrorIs(t, err, types.ErrIVExtractionFailed)
}

func TestKeeperRejectsOtherKeys(t *testing.T) {
	k, err := New(testConfig())
	require.NoError(t, err)
	blob, err := k.Encrypt([]byte("attack at dawn"))
	require.NoError(t, err)

	other := testConfig()
	other.Key = "battery staple"
	o, err := New(other)
	require.NoError(t, err)

	_, err = o.Decrypt(blob)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrAuthenticationFailed) ||
		errors.Is(err, types.ErrCipherOperationFailed) ||
		errors.Is(err, types.ErrIVExtractionFailed), "unexpected error %v", err)
}

func TestKeeperStretchSettingsMatter(t *testing.T) {
	k, err := New(testConfig())
	require.NoError(t, err)
	blob, err := k.Encrypt([]byte("attack at dawn"))
	require.NoError(t, err)

	exact := testConfig()
	exact.ExactStretch = true
	e, err := New(exact)
	require.NoError(t, err)

	_, err = e.Decrypt(blob)
	assert.Error(t, err)
}

func TestNewRejectsIncompleteConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *config.Config)
		field  string
	}{
		{name: "missing key", modify: func(c *config.Config) { c.Key = "" }, field: "key"},
		{name: "missing cipher", modify: func(c *config.Config) { c.Cipher = "" }, field: "cipher"},
		{name: "missing mode", modify: func(c *config.Config) { c.Mode = "" }, field: "mode"},
		{name: "missing hash rounds", modify: func(c *config.Config) { c.HashRounds = 0 }, field: "hash_rounds"},
		{name: "hash rounds too high", modify: func(c *config.Config) { c.HashRounds = 40 }, field: "hash_rounds"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := testConfig()
			test.modify(cfg)
			k, err := New(cfg)
			assert.Nil(t, k)
			assert.ErrorIs(t, err, types.ErrConfigurationInvalid)

			var cfgErr types.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, test.field, cfgErr.Field)
		})
	}

	_, err := New(nil)
	assert.ErrorIs(t, err, types.ErrConfigurationInvalid)
}

func TestKeeperWithoutRandomness(t *testing.T) {
	k, err := New(testConfig(), WithRandom(iotest.ErrReader(errors.New("empty"))))
	require.NoError(t, err)

	_, err = k.Encrypt([]byte("data"))
	assert.ErrorIs(t, err, types.ErrCipherOperationFailed)

	_, err = k.HashPassword("password")
	assert.ErrorIs(t, err, types.ErrHashGenerationFailed)
}

func TestKeeperNeverLogsKey(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	k, err := New(testConfig(), WithLogger(zap.New(core)))
	require.NoError(t, err)
	_, err = k.Decrypt([]byte("garbage"))
	require.Error(t, err)

	require.NotZero(t, logs.Len())
	for _, entry := range logs.All() {
		assert.NotContains(t, entry.Message, "correct horse")
		for _, field := range entry.Context {
			assert.NotContains(t, field.String, "correct horse")
		}
	}
	assert.Equal(t, 1, logs.FilterMessage("keeper ready").Len())
}

func TestInstanceReturnsSameKeeper(t *testing.T) {
	teardownSuite := setupSuite(t)
	defer teardownSuite(t)

	first, err := Instance(testConfig())
	require.NoError(t, err)

	other := testConfig()
	other.Key = "ignored"
	second, err := Instance(other)
	require.NoError(t, err)
	assert.Same(t, first, second)

	Reset()
	third, err := Instance(other)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

func TestInstanceDoesNotCacheFailures(t *testing.T) {
	teardownSuite := setupSuite(t)
	defer teardownSuite(t)

	bad := testConfig()
	bad.Key = ""
	_, err := Instance(bad)
	require.Error(t, err)

	k, err := Instance(testConfig())
	require.NoError(t, err)
	assert.NotNil(t, k)
}

func TestKeeperConcurrentUse(t *testing.T) {
	k, err := New(testConfig())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			msg := fmt.Sprintf("message %d", i)
			text, err := k.EncryptString(msg)
			if err != nil {
				errs <- err
				return
			}
			out, err := k.DecryptString(text)
			if err != nil {
				errs <- err
				return
			}
			if out != msg {
				errs <- fmt.Errorf("expected %q got %q", msg, out)
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			password := fmt.Sprintf("password %d", i)
			hash, err := k.HashPassword(password)
			if err != nil {
				errs <- err
				return
			}
			if !k.VerifyPassword(password, hash) {
				errs <- fmt.Errorf("hash for %q did not verify", password)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
