package vault

import (
	"encoding/base64"
	"fmt"
	"runtime"
	"strings"

	"github.com/tink-crypto/tink-go/v2/insecurecleartextkeyset"
	"github.com/tink-crypto/tink-go/v2/keyset"
	"golang.org/x/crypto/argon2"
)

const (
	// Argon2id fixed parameters
	Argon2Threads = 4
	Argon2KeyLen  = 32 // 256 bits for AES-256
	SaltLen       = 16
)

// deriveKey derives the sealing key from a passphrase using Argon2id
func deriveKey(passphrase, salt []byte, p KDFParams) []byte {
	return argon2.IDKey(passphrase, salt, p.Time, p.Memory, p.Threads, p.KeyLen)
}

// keysetFromKey wraps a raw key into a Tink keyset handle for the
// AES-GCM-HKDF streaming primitive.
func keysetFromKey(key []byte) (*keyset.Handle, error) {
	keyValue := base64.StdEncoding.EncodeToString(streamingKeyValue(key))

	// Tink keyset JSON format for AES-GCM-HKDF streaming key
	keysetJSON := fmt.Sprintf(`{
		"primaryKeyId": 1,
		"key": [{
			"keyData": {
				"typeUrl": "type.googleapis.com/google.crypto.tink.AesGcmHkdfStreamingKey",
				"keyMaterialType": "SYMMETRIC",
				"value": "%s"
			},
			"outputPrefixType": "RAW",
			"keyId": 1,
			"status": "ENABLED"
		}]
	}`, keyValue)

	return insecurecleartextkeyset.Read(
		keyset.NewJSONReader(strings.NewReader(keysetJSON)),
	)
}

// streamingKeyValue hand-encodes the AesGcmHkdfStreamingKey protobuf:
// version, params{segment size, derived key size, hkdf hash}, key value.
func streamingKeyValue(key []byte) []byte {
	segmentSize := uint32(1048576)
	derivedKeySize := uint32(32)
	hkdfHashType := uint32(3) // SHA256

	params := []byte{0x08}
	params = append(params, varint(segmentSize)...)
	params = append(params, 0x10)
	params = append(params, varint(derivedKeySize)...)
	params = append(params, 0x18)
	params = append(params, varint(hkdfHashType)...)

	out := []byte{0x08, 0x00} // version 0
	out = append(out, 0x12, byte(len(params)))
	out = append(out, params...)
	out = append(out, 0x1a, byte(len(key)))
	out = append(out, key...)
	return out
}

func varint(v uint32) []byte {
	var buf []byte
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

// Zero overwrites a byte slice with zeros
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
