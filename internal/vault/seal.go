package vault

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tink-crypto/tink-go/v2/streamingaead"
)

var ErrEmptyPassphrase = errors.New("passphrase cannot be empty")

// Seal writes a header line followed by the streaming-AEAD ciphertext of data.
func Seal(w io.Writer, data, passphrase []byte, opts Options) error {
	if len(passphrase) == 0 {
		return ErrEmptyPassphrase
	}

	// Generate random salt
	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	// Determine format string
	format := FormatBinary
	if opts.UseBase64 {
		format = FormatBase64
	}

	header := Header{
		Version:   Version,
		Algorithm: Algorithm,
		Format:    format,
		KDF: KDFParams{
			Algorithm: KDFAlgorithm,
			Salt:      base64.StdEncoding.EncodeToString(salt),
			Time:      opts.Argon2Time,
			Memory:    opts.Argon2Memory,
			Threads:   Argon2Threads,
			KeyLen:    Argon2KeyLen,
		},
	}

	// Derive key using Argon2id
	key := deriveKey(passphrase, salt, header.KDF)
	defer Zero(key)

	// Create Tink keyset for AES256-GCM-HKDF streaming
	handle, err := keysetFromKey(key)
	if err != nil {
		return fmt.Errorf("failed to create keyset: %w", err)
	}

	// Get streaming AEAD primitive
	primitive, err := streamingaead.New(handle)
	if err != nil {
		return fmt.Errorf("failed to create streaming AEAD: %w", err)
	}

	headerBytes, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	// Write header line
	buf := bufio.NewWriter(w)
	if _, err := buf.Write(append(headerBytes, '\n')); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	// Wrap in a base64 encoder unless writing raw bytes
	var out io.WriteCloser
	if opts.UseBase64 {
		out = base64.NewEncoder(base64.StdEncoding, buf)
	} else {
		out = nopCloser{buf}
	}

	// Version doubles as associated data
	encWriter, err := primitive.NewEncryptingWriter(out, []byte(header.Version))
	if err != nil {
		return fmt.Errorf("failed to create encrypting writer: %w", err)
	}
	if _, err := encWriter.Write(data); err != nil {
		return fmt.Errorf("encryption failed: %w", err)
	}
	if err := encWriter.Close(); err != nil {
		return fmt.Errorf("failed to finalize encryption: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to finalize output: %w", err)
	}

	// Write final newline for base64 format
	if opts.UseBase64 {
		if err := buf.WriteByte('\n'); err != nil {
			return fmt.Errorf("failed to write final newline: %w", err)
		}
	}

	if err := buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return nil
}

// nopCloser wraps a Writer to provide a no-op Close method
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error {
	return nil
}
