// Package pipeline runs decompilation, extraction and decryption for one
// binary, in the foreground or as a background job.
package pipeline

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"strdecrypt/internal/decompile"
	"strdecrypt/internal/extract"
	"strdecrypt/internal/scheme"
	"strdecrypt/internal/secrets"
)

// Pipeline wires the collaborators of a run. It keeps no state between runs
// other than the shared Defaults store, which is safe for concurrent use.
type Pipeline struct {
	Decompiler decompile.Decompiler
	Extractor  *extract.Extractor
	Engine     *scheme.Engine
	// Defaults fills in a secret or salt the binary does not declare. May be nil.
	Defaults  *secrets.Store
	FoldASCII bool
}

// Extract decompiles the binary at path and scans the text. A secret or salt
// whose pattern did not match is replaced by the configured default; a
// declared empty literal is kept.
func (p *Pipeline) Extract(ctx context.Context, path string) (extract.Payload, error) {
	log.Infof("Extracting strings from %s", path)

	text, err := p.Decompiler.Decompile(ctx, path)
	if err != nil {
		return extract.Payload{}, err
	}
	if p.FoldASCII {
		text = decompile.FoldASCII(text)
	}

	scan := p.Extractor.Scan(text)
	log.Debugf("Scan: secret found=%t, salt found=%t, %d tokens", scan.Secret.Found, scan.Salt.Found, len(scan.Tokens))

	if p.Defaults != nil && p.Defaults.IsSet() {
		secret, salt := p.Defaults.Get()
		if !scan.Secret.Found {
			log.Infof("No shared secret in %s, using configured default", path)
			scan.Secret.Value = secret
		}
		if !scan.Salt.Found {
			log.Infof("No salt in %s, using configured default", path)
			scan.Salt.Value = salt
		}
	}

	return scan.Payload(), nil
}

// DecryptAll decrypts tokens with secret and salt; see scheme.Engine.DecryptAll.
func (p *Pipeline) DecryptAll(ctx context.Context, secret, salt string, tokens []string) ([]scheme.Result, error) {
	log.Infof("Decrypting %d strings", len(tokens))

	results, err := p.Engine.DecryptAll(ctx, secret, salt, tokens)
	if err != nil {
		return results, fmt.Errorf("decrypting strings: %w", err)
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			log.Debugf("Token %q: %v", r.Token, r.Err)
		}
	}
	if failed > 0 {
		log.Warnf("%d of %d strings failed to decrypt", failed, len(results))
	}
	return results, nil
}

// Run extracts and then decrypts, one stage after the other.
func (p *Pipeline) Run(ctx context.Context, path string) (Report, error) {
	payload, err := p.Extract(ctx, path)
	if err != nil {
		return Report{}, err
	}

	report := Report{Payload: payload}
	if len(payload.Tokens) == 0 {
		return report, nil
	}

	report.Results, err = p.DecryptAll(ctx, payload.SharedSecret, payload.Salt, payload.Tokens)
	return report, err
}
