package scheme

import (
	"golang.org/x/crypto/pbkdf2"
)

// DeriveKeyIV derives the cipher key and IV from the shared secret and salt.
// Key and IV are consecutive slices of a single PBKDF2 output, the way
// successive GetBytes calls on one Rfc2898DeriveBytes instance behave.
// Empty secret or salt are accepted as they are.
func DeriveKeyIV(p Params, secret, salt string) (key, iv []byte, err error) {
	h, err := p.hashFunc()
	if err != nil {
		return nil, nil, err
	}

	stream := pbkdf2.Key([]byte(secret), asciiBytes(salt), p.Iterations, p.KeyLen+p.IVLen, h)
	return stream[:p.KeyLen], stream[p.KeyLen:], nil
}

// asciiBytes converts s the way Encoding.ASCII.GetBytes does: one byte per
// UTF-16 code unit, anything above 0x7f replaced with '?'. A rune outside the
// BMP is a surrogate pair and becomes "??".
func asciiBytes(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		switch {
		case r > 0xffff:
			out = append(out, '?', '?')
		case r > 0x7f:
			out = append(out, '?')
		default:
			out = append(out, byte(r))
		}
	}
	return out
}

// zeroBytes overwrites derived key material once a call is done with it
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
