package scheme

import (
	"errors"
)

var (
	// ErrDecode means the token is not valid base64.
	ErrDecode = errors.New("invalid ciphertext encoding")

	// ErrCipher means the key was derived but the block cipher, the padding
	// check or the plaintext decoding rejected the data. Almost always a wrong
	// secret/salt or a token from a different binary.
	ErrCipher = errors.New("decryption failed")
)

// FailurePrefix is prepended to failure reasons when a result is rendered.
const FailurePrefix = "Error decrypting string: "

// Result is the outcome for one ciphertext token. Exactly one of Plaintext
// (with Err nil), Err, or Skipped describes it.
type Result struct {
	Token     string
	Plaintext string
	Err       error
	Skipped   bool
}

func (r Result) OK() bool {
	return !r.Skipped && r.Err == nil
}

// Reason is the human-readable failure reason, empty on success.
func (r Result) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

func (r Result) String() string {
	if r.Err != nil {
		return FailurePrefix + r.Err.Error()
	}
	return r.Plaintext
}
