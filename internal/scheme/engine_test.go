package scheme

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultParams(), opts...)
	require.NoError(t, err)
	return e
}

// countingBlock wraps aes.NewCipher and counts how often a cipher is built.
func countingBlock(n *atomic.Int64) BlockFunc {
	return func(key []byte) (cipher.Block, error) {
		n.Add(1)
		return aes.NewCipher(key)
	}
}

func TestDeriveKeyIV_PBKDF2Vector(t *testing.T) {
	// RFC 6070: P="password", S="salt", c=2, SHA-1
	p := DefaultParams()
	p.Iterations = 2
	p.KeyLen = 16

	key, iv, err := DeriveKeyIV(p, "password", "salt")
	require.NoError(t, err)
	require.Len(t, key, 16)
	require.Len(t, iv, 16)

	assert.Equal(t, "ea6c014dc72d6f8ccd1ed92ace1d41f0", hex.EncodeToString(key))
	assert.Equal(t, "d8de8957", hex.EncodeToString(iv[:4]))
}

func TestDeriveKeyIV_DefaultParams(t *testing.T) {
	key, iv, err := DeriveKeyIV(DefaultParams(), "Secr3t!", "s@ltval")
	require.NoError(t, err)
	require.Len(t, key, 32)
	require.Len(t, iv, 16)

	assert.Equal(t, "efb5b63589981502d0c2e491a39b18d12c6c022261fdec89c66d6843685de9b5", hex.EncodeToString(key))
	assert.Equal(t, "c15ade0dfcea03ec5e1f2f0f9a89b34a", hex.EncodeToString(iv))
}

// Reference pair computed independently with PBKDF2-HMAC-SHA1 (1000 rounds,
// 48 bytes) and openssl aes-256-cbc.
const (
	knownSecret    = "Secr3t!"
	knownSalt      = "s@ltval"
	knownPlaintext = "hello world"
	knownToken     = "K+Yko7xZyvUAwHv+DVlk7w=="
)

func TestEngine_KnownAnswer(t *testing.T) {
	e := newTestEngine(t)

	res := e.Decrypt(knownSecret, knownSalt, knownToken)
	require.NoError(t, res.Err)
	assert.Equal(t, knownPlaintext, res.Plaintext)

	token, err := e.Encrypt(knownSecret, knownSalt, knownPlaintext)
	require.NoError(t, err)
	assert.Equal(t, knownToken, token)

	results, err := e.DecryptAll(context.Background(), knownSecret, knownSalt, []string{knownToken, "not-base64!!", knownToken})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, knownPlaintext, results[0].Plaintext)
	assert.ErrorIs(t, results[1].Err, ErrDecode)
	assert.Equal(t, knownPlaintext, results[2].Plaintext)
}

func TestDeriveKeyIV_Deterministic(t *testing.T) {
	p := DefaultParams()

	k1, iv1, err := DeriveKeyIV(p, "Secr3t!", "s@ltval")
	require.NoError(t, err)
	k2, iv2, err := DeriveKeyIV(p, "Secr3t!", "s@ltval")
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	assert.Equal(t, iv1, iv2)
	assert.NotEqual(t, k1[:16], iv1, "iv must be a separate slice of the stream")

	k3, _, err := DeriveKeyIV(p, "Secr3t!", "other")
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)
}

func TestDeriveKeyIV_EmptyInputs(t *testing.T) {
	key, iv, err := DeriveKeyIV(DefaultParams(), "", "")
	require.NoError(t, err)
	assert.Len(t, key, DefaultKeyLen)
	assert.Len(t, iv, DefaultIVLen)
}

func TestASCIIBytes(t *testing.T) {
	assert.Equal(t, []byte("s@ltval"), asciiBytes("s@ltval"))
	assert.Equal(t, []byte("s@lt?"), asciiBytes("s@ltü"))
	assert.Equal(t, []byte("s@lt??x"), asciiBytes("s@lt😀x"))
	assert.Equal(t, []byte{}, asciiBytes(""))
}

func TestEngine_RoundTrip(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name      string
		secret    string
		salt      string
		plaintext string
	}{
		{"simple", "Secr3t!", "s@ltval", "hello world"},
		{"block aligned", "Secr3t!", "s@ltval", "0123456789abcdef"},
		{"empty plaintext", "Secr3t!", "s@ltval", ""},
		{"empty secret and salt", "", "", "still works"},
		{"latin1 plaintext", "pw", "saltsalt", "café crème"},
		{"long", "pw", "saltsalt", "C:\\Windows\\System32\\vssadmin.exe delete shadows /all /quiet"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := e.Encrypt(tt.secret, tt.salt, tt.plaintext)
			require.NoError(t, err)

			res := e.Decrypt(tt.secret, tt.salt, token)
			require.NoError(t, res.Err)
			assert.True(t, res.OK())
			assert.Equal(t, token, res.Token)
			assert.Equal(t, tt.plaintext, res.Plaintext)
			assert.Equal(t, tt.plaintext, res.String())
		})
	}
}

func TestEngine_EncryptDeterministic(t *testing.T) {
	e := newTestEngine(t)

	a, err := e.Encrypt("Secr3t!", "s@ltval", "payload")
	require.NoError(t, err)
	b, err := e.Encrypt("Secr3t!", "s@ltval", "payload")
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestEngine_EncryptUnencodable(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Encrypt("pw", "saltsalt", "日本語")
	assert.Error(t, err)
}

func TestEngine_DecryptFailures(t *testing.T) {
	e := newTestEngine(t)

	valid, err := e.Encrypt("Secr3t!", "s@ltval", "secret message")
	require.NoError(t, err)

	tests := []struct {
		name    string
		secret  string
		token   string
		wantErr error
	}{
		{"malformed base64", "Secr3t!", "not-base64!!", ErrDecode},
		{"short ciphertext", "Secr3t!", "QUJD", ErrCipher},
		{"truncated ciphertext", "Secr3t!", valid[:len(valid)-4], ErrCipher},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Decrypt(tt.secret, "s@ltval", tt.token)
			require.Error(t, res.Err)
			assert.ErrorIs(t, res.Err, tt.wantErr)
			assert.False(t, res.OK())
			assert.Empty(t, res.Plaintext)
			assert.Contains(t, res.String(), FailurePrefix)
			assert.Equal(t, res.Err.Error(), res.Reason())
		})
	}
}

func TestEngine_WrongSecret(t *testing.T) {
	e := newTestEngine(t)

	token, err := e.Encrypt("Secr3t!", "s@ltval", "secret message")
	require.NoError(t, err)

	res := e.Decrypt("wrong", "s@ltval", token)
	assert.NotEqual(t, "secret message", res.Plaintext)
	if res.Err != nil {
		assert.ErrorIs(t, res.Err, ErrCipher)
	}
}

func TestEngine_DecryptIsPure(t *testing.T) {
	e := newTestEngine(t)

	for _, token := range []string{"not-base64!!", "QUJD"} {
		a := e.Decrypt("Secr3t!", "s@ltval", token)
		b := e.Decrypt("Secr3t!", "s@ltval", token)
		assert.Equal(t, a.String(), b.String())
	}

	token, err := e.Encrypt("Secr3t!", "s@ltval", "same")
	require.NoError(t, err)
	assert.Equal(t, e.Decrypt("Secr3t!", "s@ltval", token), e.Decrypt("Secr3t!", "s@ltval", token))
}

func TestEngine_TokenWhitespace(t *testing.T) {
	e := newTestEngine(t)

	token, err := e.Encrypt("pw", "saltsalt", "wrapped")
	require.NoError(t, err)

	res := e.Decrypt("pw", "saltsalt", token[:8]+"\r\n "+token[8:])
	require.NoError(t, res.Err)
	assert.Equal(t, "wrapped", res.Plaintext)
}

func TestEngine_EmptyTokenSkipsCipher(t *testing.T) {
	var calls atomic.Int64
	e := newTestEngine(t, WithBlockCipher(countingBlock(&calls)))

	res := e.Decrypt("pw", "saltsalt", "")
	assert.True(t, res.Skipped)
	assert.False(t, res.OK())
	assert.Equal(t, int64(0), calls.Load())
}

func TestEngine_DecryptAll(t *testing.T) {
	var calls atomic.Int64
	e := newTestEngine(t, WithBlockCipher(countingBlock(&calls)), WithWorkers(2))

	plaintexts := []string{"first", "second", "third", "fourth"}
	var tokens []string
	for _, p := range plaintexts {
		tok, err := e.Encrypt("Secr3t!", "s@ltval", p)
		require.NoError(t, err)
		tokens = append(tokens, tok)
	}
	// malformed and empty tokens sit between valid ones
	tokens = append(tokens[:2], append([]string{"not-base64!!", ""}, tokens[2:]...)...)
	calls.Store(0)

	results, err := e.DecryptAll(context.Background(), "Secr3t!", "s@ltval", tokens)
	require.NoError(t, err)
	require.Len(t, results, len(tokens))

	for i, res := range results {
		assert.Equal(t, tokens[i], res.Token, "position %d", i)
	}
	assert.Equal(t, "first", results[0].Plaintext)
	assert.Equal(t, "second", results[1].Plaintext)
	assert.ErrorIs(t, results[2].Err, ErrDecode)
	assert.True(t, results[3].Skipped)
	assert.Equal(t, "third", results[4].Plaintext)
	assert.Equal(t, "fourth", results[5].Plaintext)

	// the malformed token fails before the cipher, the empty one is skipped
	assert.Equal(t, int64(4), calls.Load())
}

func TestEngine_DecryptAllEmpty(t *testing.T) {
	e := newTestEngine(t)

	results, err := e.DecryptAll(context.Background(), "pw", "saltsalt", nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEngine_DecryptAllCancelled(t *testing.T) {
	var calls atomic.Int64
	e := newTestEngine(t, WithBlockCipher(countingBlock(&calls)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tokens := []string{"QUJD", "QUJD", "QUJD"}
	results, err := e.DecryptAll(ctx, "pw", "saltsalt", tokens)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, len(tokens))
	for _, res := range results {
		assert.True(t, res.Skipped)
	}
	assert.Equal(t, int64(0), calls.Load())
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Params)
		wantErr bool
	}{
		{"defaults", func(*Params) {}, false},
		{"aes-128", func(p *Params) { p.KeyLen = 16 }, false},
		{"sha256", func(p *Params) { p.Hash = "SHA256" }, false},
		{"utf8", func(p *Params) { p.TextEncoding = "utf-8" }, false},
		{"zero iterations", func(p *Params) { p.Iterations = 0 }, true},
		{"bad key length", func(p *Params) { p.KeyLen = 20 }, true},
		{"bad iv length", func(p *Params) { p.IVLen = 8 }, true},
		{"unknown hash", func(p *Params) { p.Hash = "md4" }, true},
		{"unknown encoding", func(p *Params) { p.TextEncoding = "ebcdic" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				_, engErr := NewEngine(p)
				assert.Error(t, engErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}
