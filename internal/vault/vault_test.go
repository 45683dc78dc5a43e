package vault

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(base64 bool) Options {
	return Options{UseBase64: base64, Argon2Memory: 1024, Argon2Time: 1}
}

func TestSealOpen_RoundTrip(t *testing.T) {
	for _, useBase64 := range []bool{true, false} {
		var buf bytes.Buffer
		body := []byte(`{"shared_secret":"Secr3t!","salt":"s@ltval"}`)

		require.NoError(t, Seal(&buf, body, []byte("vault pass"), testOptions(useBase64)))

		got, err := Open(bytes.NewReader(buf.Bytes()), []byte("vault pass"))
		require.NoError(t, err)
		assert.Equal(t, body, got)
	}
}

func TestSeal_Header(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Seal(&buf, []byte("x"), []byte("pw"), testOptions(true)))

	line, _, ok := strings.Cut(buf.String(), "\n")
	require.True(t, ok)

	var h Header
	require.NoError(t, json.Unmarshal([]byte(line), &h))
	assert.Equal(t, Version, h.Version)
	assert.Equal(t, Algorithm, h.Algorithm)
	assert.Equal(t, FormatBase64, h.Format)
	assert.Equal(t, KDFAlgorithm, h.KDF.Algorithm)
	assert.Equal(t, uint32(1), h.KDF.Time)
	assert.Equal(t, uint32(Argon2KeyLen), h.KDF.KeyLen)
}

func TestOpen_WrongPassphrase(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Seal(&buf, []byte("data"), []byte("right"), testOptions(true)))

	_, err := Open(bytes.NewReader(buf.Bytes()), []byte("wrong"))
	assert.Error(t, err)
}

func TestEmptyPassphrase(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, Seal(&buf, []byte("data"), nil, testOptions(true)), ErrEmptyPassphrase)

	_, err := Open(strings.NewReader("{}\n"), nil)
	assert.ErrorIs(t, err, ErrEmptyPassphrase)
}

func TestOpen_BadHeaders(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"not json", "garbage\n"},
		{"no newline", `{"version":"1.0.0"}`},
		{"missing version", `{"algorithm":"AES256-GCM-HKDF-1MB","kdf":{"algorithm":"argon2id","keylen":32}}` + "\n"},
		{"unknown algorithm", `{"version":"1.0.0","algorithm":"rot13","kdf":{"algorithm":"argon2id","keylen":32}}` + "\n"},
		{"unknown kdf", `{"version":"1.0.0","algorithm":"AES256-GCM-HKDF-1MB","kdf":{"algorithm":"scrypt","keylen":32}}` + "\n"},
		{"unknown format", `{"version":"1.0.0","algorithm":"AES256-GCM-HKDF-1MB","format":"hex","kdf":{"algorithm":"argon2id","keylen":32}}` + "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(strings.NewReader(tt.header), []byte("pw"))
			assert.Error(t, err)
		})
	}
}

func TestVarint(t *testing.T) {
	assert.Equal(t, []byte{0x03}, varint(3))
	assert.Equal(t, []byte{0x80, 0x01}, varint(128))
	assert.Equal(t, []byte{0x80, 0x80, 0x40}, varint(1048576))
}
