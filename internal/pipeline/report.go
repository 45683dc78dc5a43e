package pipeline

import (
	"encoding/json"
	"fmt"
	"io"

	"strdecrypt/internal/extract"
	"strdecrypt/internal/scheme"
)

// Report is the outcome of one run. Results is positionally aligned with
// Payload.Tokens.
type Report struct {
	Payload extract.Payload
	Results []scheme.Result
}

// Pair joins a ciphertext token with its plaintext or failure text.
type Pair struct {
	Token     string `json:"token"`
	Plaintext string `json:"plaintext,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Pairs returns one Pair per decrypted or failed token; skipped (empty or
// cancelled) tokens are left out.
func (r Report) Pairs() []Pair {
	return Pairs(r.Results)
}

func Pairs(results []scheme.Result) []Pair {
	pairs := make([]Pair, 0, len(results))
	for _, res := range results {
		if res.Skipped {
			continue
		}
		pairs = append(pairs, Pair{
			Token:     res.Token,
			Plaintext: res.Plaintext,
			Error:     res.Reason(),
		})
	}
	return pairs
}

// Status is a one-line summary of the run. Tokens that were never attempted
// because the run was cancelled are reported as skipped.
func (r Report) Status() string {
	if len(r.Payload.Tokens) == 0 {
		return "No strings found in binary"
	}
	if r.Results == nil {
		return "Extraction complete"
	}

	ok, failed, skipped := 0, 0, 0
	for _, res := range r.Results {
		switch {
		case res.OK():
			ok++
		case res.Err != nil:
			failed++
		case res.Skipped && res.Token != "":
			skipped++
		}
	}

	if ok == 0 && failed == 0 && skipped > 0 {
		return fmt.Sprintf("Cancelled, %d strings skipped", skipped)
	}

	status := fmt.Sprintf("Decrypted %d strings", ok)
	if failed > 0 {
		status += fmt.Sprintf(", %d failed", failed)
	}
	if skipped > 0 {
		status += fmt.Sprintf(", %d skipped", skipped)
	}
	return status
}

// WriteText writes one "token<TAB>plaintext" line per pair. Failures carry
// the "Error decrypting string: " prefix in place of the plaintext.
func WriteText(w io.Writer, results []scheme.Result) error {
	for _, res := range results {
		if res.Skipped {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\n", res.Token, res.String()); err != nil {
			return err
		}
	}
	return nil
}

type jsonReport struct {
	SharedSecret string `json:"shared_secret"`
	Salt         string `json:"salt"`
	Strings      []Pair `json:"strings"`
	Status       string `json:"status"`
}

func (r Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonReport{
		SharedSecret: r.Payload.SharedSecret,
		Salt:         r.Payload.Salt,
		Strings:      r.Pairs(),
		Status:       r.Status(),
	})
}
