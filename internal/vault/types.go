package vault

const (
	Version = "1.0.0"

	Algorithm    = "AES256-GCM-HKDF-1MB"
	KDFAlgorithm = "argon2id"

	FormatBinary = "binary"
	FormatBase64 = "base64"
)

// Header is the JSON metadata written as the first line of a sealed file
type Header struct {
	Version   string    `json:"version"`
	Algorithm string    `json:"algorithm"`
	Format    string    `json:"format"` // "binary" or "base64"
	KDF       KDFParams `json:"kdf"`
}

// KDFParams contains Argon2id parameters for key derivation
type KDFParams struct {
	Algorithm string `json:"algorithm"`
	Salt      string `json:"salt"`
	Time      uint32 `json:"time"`
	Memory    uint32 `json:"memory"`
	Threads   uint8  `json:"threads"`
	KeyLen    uint32 `json:"keylen"`
}

// Options holds sealing parameters
type Options struct {
	UseBase64    bool
	Argon2Memory uint32 // in KB
	Argon2Time   uint32
}

// DefaultOptions is tuned for a small secrets file opened on every run, not
// for bulk data.
func DefaultOptions() Options {
	return Options{
		UseBase64:    true,
		Argon2Memory: 64 * 1024, // 64 MB
		Argon2Time:   3,
	}
}
