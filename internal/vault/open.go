package vault

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/tink-crypto/tink-go/v2/streamingaead"
)

// Open reads a sealed stream produced by Seal and returns the plaintext.
func Open(r io.Reader, passphrase []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, ErrEmptyPassphrase
	}

	// Read header line
	reader := bufio.NewReader(r)
	headerLine, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read header (is it a sealed file?): %w", err)
	}

	// Parse header JSON
	var header Header
	if err := json.Unmarshal(headerLine, &header); err != nil {
		return nil, fmt.Errorf("failed to parse header (is it a sealed file?): %w", err)
	}
	if err := header.validate(); err != nil {
		return nil, err
	}

	// Decode salt
	salt, err := base64.StdEncoding.DecodeString(header.KDF.Salt)
	if err != nil {
		return nil, fmt.Errorf("invalid salt encoding: %w", err)
	}

	// Derive key using stored parameters
	key := deriveKey(passphrase, salt, header.KDF)
	defer Zero(key)

	// Create Tink keyset
	handle, err := keysetFromKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create keyset: %w", err)
	}

	// Get streaming AEAD primitive
	primitive, err := streamingaead.New(handle)
	if err != nil {
		return nil, fmt.Errorf("failed to create streaming AEAD: %w", err)
	}

	// Create input reader based on format
	var in io.Reader = reader
	if header.Format == FormatBase64 {
		in = base64.NewDecoder(base64.StdEncoding, newlineTrimmingReader{reader})
	}

	// Create decrypting reader
	decReader, err := primitive.NewDecryptingReader(in, []byte(header.Version))
	if err != nil {
		return nil, fmt.Errorf("failed to create decrypting reader: %w", err)
	}

	data, err := io.ReadAll(decReader)
	if err != nil {
		return nil, fmt.Errorf("decryption failed (wrong passphrase or corrupted data?): %w", err)
	}
	return data, nil
}

func (h *Header) validate() error {
	// Validate version compatibility
	if h.Version == "" {
		return fmt.Errorf("invalid sealed file: missing version")
	}
	// Validate algorithm
	if h.Algorithm != Algorithm {
		return fmt.Errorf("unsupported algorithm: %s", h.Algorithm)
	}
	// Validate KDF
	if h.KDF.Algorithm != KDFAlgorithm {
		return fmt.Errorf("unsupported KDF: %s", h.KDF.Algorithm)
	}
	if h.KDF.KeyLen != Argon2KeyLen {
		return fmt.Errorf("unsupported key length: %d", h.KDF.KeyLen)
	}

	// default to base64 for files written before the format field existed
	if h.Format == "" {
		h.Format = FormatBase64
	}
	if h.Format != FormatBinary && h.Format != FormatBase64 {
		return fmt.Errorf("unsupported format: %s", h.Format)
	}
	return nil
}

// newlineTrimmingReader strips trailing newlines from each chunk
type newlineTrimmingReader struct {
	r io.Reader
}

func (t newlineTrimmingReader) Read(p []byte) (n int, err error) {
	n, err = t.r.Read(p)
	for n > 0 && (p[n-1] == '\n' || p[n-1] == '\r') {
		n--
	}
	return n, err
}
