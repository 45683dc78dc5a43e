package scheme

import (
	"crypto/aes"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

const (
	// Rfc2898DeriveBytes defaults used by the target string helper
	DefaultIterations = 1000
	DefaultHash       = "sha1"
	DefaultKeyLen     = 32 // RijndaelManaged.KeySize / 8
	DefaultIVLen      = aes.BlockSize
	DefaultEncoding   = "windows-1252"
)

// Params fixes every knob of the string encryption scheme. The zero value is
// not usable; start from DefaultParams.
type Params struct {
	Iterations   int    `yaml:"iterations"`
	Hash         string `yaml:"hash"`
	KeyLen       int    `yaml:"key_length"`
	IVLen        int    `yaml:"iv_length"`
	TextEncoding string `yaml:"text_encoding"`
}

// DefaultParams returns the parameters of PBKDF2-SHA1/1000 feeding AES-256-CBC
// with the IV taken from the same derived stream.
func DefaultParams() Params {
	return Params{
		Iterations:   DefaultIterations,
		Hash:         DefaultHash,
		KeyLen:       DefaultKeyLen,
		IVLen:        DefaultIVLen,
		TextEncoding: DefaultEncoding,
	}
}

// Validate reports the first parameter the engine cannot work with.
func (p Params) Validate() error {
	if p.Iterations < 1 {
		return fmt.Errorf("iterations must be at least 1, got %d", p.Iterations)
	}
	switch p.KeyLen {
	case 16, 24, 32:
	default:
		return fmt.Errorf("unsupported key length: %d", p.KeyLen)
	}
	if p.IVLen != aes.BlockSize {
		return fmt.Errorf("iv length must be %d, got %d", aes.BlockSize, p.IVLen)
	}
	if _, err := p.hashFunc(); err != nil {
		return err
	}
	if _, err := p.textEncoding(); err != nil {
		return err
	}
	return nil
}

func (p Params) hashFunc() (func() hash.Hash, error) {
	switch strings.ToLower(p.Hash) {
	case "sha1":
		return sha1.New, nil
	case "sha256":
		return sha256.New, nil
	case "sha512":
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("unsupported hash: %s", p.Hash)
	}
}

func (p Params) textEncoding() (encoding.Encoding, error) {
	switch strings.ToLower(p.TextEncoding) {
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "iso-8859-1", "latin1":
		return charmap.ISO8859_1, nil
	case "utf-8", "utf8":
		return unicode.UTF8, nil
	default:
		return nil, fmt.Errorf("unsupported text encoding: %s", p.TextEncoding)
	}
}
