package scheme

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"
	"runtime"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding"
)

// BlockFunc builds the block cipher for a derived key.
type BlockFunc func(key []byte) (cipher.Block, error)

type Option func(*Engine)

// WithBlockCipher replaces the AES constructor. Tests use it to count cipher
// invocations.
func WithBlockCipher(f BlockFunc) Option {
	return func(e *Engine) {
		e.newBlock = f
	}
}

// WithWorkers bounds how many tokens DecryptAll works on at once.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// Engine reverses the string encryption for a fixed Params. It holds no
// per-call state and is safe for concurrent use.
type Engine struct {
	params   Params
	text     encoding.Encoding
	newBlock BlockFunc
	workers  int
}

func NewEngine(p Params, opts ...Option) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scheme parameters: %w", err)
	}
	text, _ := p.textEncoding()

	e := &Engine{
		params:   p,
		text:     text,
		newBlock: aes.NewCipher,
		workers:  runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Decrypt recovers the plaintext of a single token. Failures are returned
// inside the Result, never as a separate error. An empty token is skipped
// without touching the cipher.
func (e *Engine) Decrypt(secret, salt, token string) Result {
	if token == "" {
		return Result{Skipped: true}
	}

	key, iv, err := DeriveKeyIV(e.params, secret, salt)
	if err != nil {
		return Result{Token: token, Err: fmt.Errorf("%w: %w", ErrCipher, err)}
	}
	defer zeroBytes(key)
	defer zeroBytes(iv)

	return e.decryptWith(key, iv, token)
}

// DecryptAll decrypts tokens with one key derivation and returns one Result
// per token, in input order. The context is checked before each token; on
// cancellation the tokens not yet started are reported as skipped and the
// context error is returned alongside the partial results.
func (e *Engine) DecryptAll(ctx context.Context, secret, salt string, tokens []string) ([]Result, error) {
	results := make([]Result, len(tokens))
	for i, tok := range tokens {
		results[i] = Result{Token: tok, Skipped: true}
	}
	if len(tokens) == 0 {
		return results, nil
	}

	key, iv, err := DeriveKeyIV(e.params, secret, salt)
	if err != nil {
		return results, fmt.Errorf("deriving key: %w", err)
	}
	defer zeroBytes(key)
	defer zeroBytes(iv)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, tok := range tokens {
		if gctx.Err() != nil {
			break
		}
		if tok == "" {
			continue
		}
		i, tok := i, tok
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.decryptWith(key, iv, tok)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func (e *Engine) decryptWith(key, iv []byte, token string) Result {
	res := Result{Token: token}

	ciphertext, err := base64.StdEncoding.DecodeString(stripSpace(token))
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrDecode, err)
		return res
	}

	block, err := e.newBlock(key)
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrCipher, err)
		return res
	}

	bs := block.BlockSize()
	if len(ciphertext) == 0 || len(ciphertext)%bs != 0 {
		res.Err = fmt.Errorf("%w: ciphertext length %d is not a multiple of the block size", ErrCipher, len(ciphertext))
		return res
	}

	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)

	plain, err = unpad(plain, bs)
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrCipher, err)
		return res
	}

	text, err := e.text.NewDecoder().Bytes(plain)
	if err != nil {
		res.Err = fmt.Errorf("%w: decoding plaintext: %w", ErrCipher, err)
		return res
	}

	res.Plaintext = string(text)
	return res
}

// Encrypt is the forward transform: the same plaintext under the same secret
// and salt always yields the same token.
func (e *Engine) Encrypt(secret, salt, plaintext string) (string, error) {
	raw, err := e.text.NewEncoder().Bytes([]byte(plaintext))
	if err != nil {
		return "", fmt.Errorf("encoding plaintext as %s: %w", e.params.TextEncoding, err)
	}

	key, iv, err := DeriveKeyIV(e.params, secret, salt)
	if err != nil {
		return "", fmt.Errorf("deriving key: %w", err)
	}
	defer zeroBytes(key)
	defer zeroBytes(iv)

	block, err := e.newBlock(key)
	if err != nil {
		return "", fmt.Errorf("creating cipher: %w", err)
	}

	padded := pad(raw, block.BlockSize())
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(padded, padded)

	return base64.StdEncoding.EncodeToString(padded), nil
}

// pad applies PKCS#7 padding; a full block is added when len(b) is aligned.
func pad(b []byte, bs int) []byte {
	n := bs - len(b)%bs
	return append(append([]byte{}, b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, bs int) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("invalid padding: empty block")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > bs || n > len(b) {
		return nil, fmt.Errorf("invalid padding length %d", n)
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, fmt.Errorf("invalid padding bytes")
		}
	}
	return b[:len(b)-n], nil
}

// stripSpace drops whitespace inside a token, which Convert.FromBase64String
// tolerates and copy-pasted tokens often carry.
func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
