// Package decompile turns a compiled .NET assembly into C# source text by
// running an external decompiler.
package decompile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrExtractionInput means the decompiled text could not be obtained. It is
// fatal to a run.
var ErrExtractionInput = errors.New("cannot obtain decompiled text")

// InputPlaceholder in Command.Args is replaced with the assembly path.
const InputPlaceholder = "{input}"

type Decompiler interface {
	Decompile(ctx context.Context, path string) (string, error)
}

// Command runs an external decompiler and takes its stdout as the source text.
type Command struct {
	Name    string
	Args    []string
	Timeout time.Duration
}

// DefaultCommand uses ilspycmd, which prints the decompiled assembly to stdout.
func DefaultCommand() *Command {
	return &Command{
		Name:    "ilspycmd",
		Args:    []string{InputPlaceholder},
		Timeout: 2 * time.Minute,
	}
}

func (c *Command) Decompile(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtractionInput, err)
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	args := make([]string, 0, len(c.Args)+1)
	substituted := false
	for _, a := range c.Args {
		if strings.Contains(a, InputPlaceholder) {
			substituted = true
		}
		args = append(args, strings.ReplaceAll(a, InputPlaceholder, path))
	}
	if !substituted {
		args = append(args, path)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debugf("Running decompiler: %s %s", c.Name, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %s failed: %w: %s", ErrExtractionInput, c.Name, err, msg)
		}
		return "", fmt.Errorf("%w: %s failed: %w", ErrExtractionInput, c.Name, err)
	}

	log.Debugf("Decompiler produced %d bytes", stdout.Len())
	return stdout.String(), nil
}

// TextFile treats the input path as already-decompiled source text.
type TextFile struct{}

func (TextFile) Decompile(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtractionInput, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExtractionInput, err)
	}
	return string(data), nil
}

// FoldASCII replaces every non-ASCII UTF-16 code unit with '?', matching how
// the decompiler output was re-encoded as ASCII before the patterns ran. Runes
// outside the BMP are surrogate pairs and become "??".
func FoldASCII(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			var b strings.Builder
			b.Grow(len(s))
			for _, r := range s {
				switch {
				case r > 0xffff:
					b.WriteString("??")
				case r > 0x7f:
					b.WriteByte('?')
				default:
					b.WriteRune(r)
				}
			}
			return b.String()
		}
	}
	return s
}
