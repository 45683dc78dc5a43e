// Package extract locates the shared secret, the salt and the encrypted string
// literals in decompiled C# source text.
package extract

import (
	"fmt"
	"regexp"
)

// Default names used by the string-encryption helper of the target family.
const (
	DefaultSecretField = "msaltpassss"
	DefaultSaltField   = "_salt"
	DefaultDecryptCall = "encc.DecryptStringAES"
)

// literal matches a double-quoted, single-line string literal and captures its
// body with escape sequences left as written.
const literal = `"((?:[^"\\\n]|\\.)*)"`

// Patterns names the identifiers the three scanners look for.
type Patterns struct {
	SecretField string `yaml:"secret_field"`
	SaltField   string `yaml:"salt_field"`
	DecryptCall string `yaml:"decrypt_call"`
}

func DefaultPatterns() Patterns {
	return Patterns{
		SecretField: DefaultSecretField,
		SaltField:   DefaultSaltField,
		DecryptCall: DefaultDecryptCall,
	}
}

// Payload is what one extraction run yields. Fields that were not found are
// empty strings; Tokens keeps source order.
type Payload struct {
	SharedSecret string   `json:"shared_secret"`
	Salt         string   `json:"salt"`
	Tokens       []string `json:"tokens"`
}

// Field is a scalar match that remembers whether the pattern matched at all,
// so "not found" and "found but empty" stay distinct.
type Field struct {
	Value string
	Found bool
}

// Scan is the detailed result of matching the three patterns.
type Scan struct {
	Secret Field
	Salt   Field
	Tokens []string
}

func (s Scan) Payload() Payload {
	tokens := s.Tokens
	if tokens == nil {
		tokens = []string{}
	}
	return Payload{
		SharedSecret: s.Secret.Value,
		Salt:         s.Salt.Value,
		Tokens:       tokens,
	}
}

// Extractor holds the compiled scanners for one Patterns set. It is immutable
// and safe for concurrent use.
type Extractor struct {
	secret *regexp.Regexp
	salt   *regexp.Regexp
	call   *regexp.Regexp
}

func NewExtractor(p Patterns) (*Extractor, error) {
	if p.SecretField == "" || p.SaltField == "" || p.DecryptCall == "" {
		return nil, fmt.Errorf("secret field, salt field and decrypt call must all be set")
	}

	secret, err := regexp.Compile(`private\s+static\s+string\s+` + regexp.QuoteMeta(p.SecretField) +
		`\s*=\s*` + literal + `\s*;`)
	if err != nil {
		return nil, fmt.Errorf("compiling secret pattern: %w", err)
	}

	salt, err := regexp.Compile(`private\s+static\s+byte\s*\[\s*\]\s+` + regexp.QuoteMeta(p.SaltField) +
		`\s*=\s*Encoding\.ASCII\.GetBytes\(\s*` + literal + `\s*\)\s*;`)
	if err != nil {
		return nil, fmt.Errorf("compiling salt pattern: %w", err)
	}

	call, err := regexp.Compile(regexp.QuoteMeta(p.DecryptCall) + `\(\s*` + literal + `\s*,`)
	if err != nil {
		return nil, fmt.Errorf("compiling call pattern: %w", err)
	}

	return &Extractor{
		secret: secret,
		salt:   salt,
		call:   call,
	}, nil
}

// Scan matches all three patterns against the whole text. The first match
// wins for the secret and the salt; every call site contributes a token.
func (x *Extractor) Scan(text string) Scan {
	var s Scan

	if m := x.secret.FindStringSubmatch(text); m != nil {
		s.Secret = Field{Value: m[1], Found: true}
	}
	if m := x.salt.FindStringSubmatch(text); m != nil {
		s.Salt = Field{Value: m[1], Found: true}
	}
	for _, m := range x.call.FindAllStringSubmatch(text, -1) {
		s.Tokens = append(s.Tokens, m[1])
	}

	return s
}

func (x *Extractor) Extract(text string) Payload {
	return x.Scan(text).Payload()
}

var defaultExtractor, _ = NewExtractor(DefaultPatterns())

// Extract runs the default patterns over text.
func Extract(text string) Payload {
	return defaultExtractor.Extract(text)
}
