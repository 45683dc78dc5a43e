package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"strdecrypt/internal/extract"
	"strdecrypt/internal/pipeline"
)

func newRunCmd(a *app) *cobra.Command {
	var textInput, asJSON bool

	cmd := &cobra.Command{
		Use:   "run <binary>...",
		Short: "Decompile binaries, extract their encrypted strings and decrypt them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadDefaults(); err != nil {
				return err
			}
			p, err := a.newPipeline(textInput)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			var lastErr error
			for _, path := range args {
				path := path
				job := p.Start(ctx, path, func(r pipeline.Report, err error) {
					if err != nil {
						log.Errorf("%s: %v", path, err)
						return
					}
					log.Infof("%s: %s", path, r.Status())
				})

				report, err := job.Wait()
				if len(args) > 1 && !asJSON {
					fmt.Fprintf(out, "# %s\n", path)
				}
				if len(report.Payload.Tokens) > 0 || err == nil {
					if werr := writeReport(out, report, asJSON); werr != nil {
						return werr
					}
				}

				if err != nil {
					if ctx.Err() != nil {
						return fmt.Errorf("interrupted: %w", err)
					}
					lastErr = err
				}
			}
			return lastErr
		},
	}

	cmd.Flags().BoolVarP(&textInput, "text", "t", false, "inputs are already-decompiled source files")
	cmd.Flags().BoolVar(&asJSON, "json", false, "write results as JSON")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeReport(w io.Writer, r pipeline.Report, asJSON bool) error {
	if asJSON {
		return r.WriteJSON(w)
	}
	return pipeline.WriteText(w, r.Results)
}

func newExtractCmd(a *app) *cobra.Command {
	var textInput, asJSON bool

	cmd := &cobra.Command{
		Use:   "extract <binary>",
		Short: "Print the shared secret, salt and encrypted strings of a binary",
		Long: `Print the encrypted strings of a binary, one per line, on stdout.
The shared secret and salt are logged on stderr, so the output can be piped
straight into "strdecrypt decrypt".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadDefaults(); err != nil {
				return err
			}
			p, err := a.newPipeline(textInput)
			if err != nil {
				return err
			}

			payload, err := p.Extract(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, payload)
			}

			log.Infof("Shared secret: %q", payload.SharedSecret)
			log.Infof("Salt: %q", payload.Salt)
			if len(payload.Tokens) == 0 {
				log.Warn("No strings found in binary")
			}
			for _, tok := range payload.Tokens {
				fmt.Fprintln(out, tok)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&textInput, "text", "t", false, "input is an already-decompiled source file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "write the payload as JSON")
	return cmd
}

func newDecryptCmd(a *app) *cobra.Command {
	var secret, salt string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "decrypt [token...]",
		Short: "Decrypt tokens given as arguments or one per line on stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.resolveSecrets(cmd, &secret, &salt); err != nil {
				return err
			}

			tokens := args
			if len(tokens) == 0 {
				lines, err := readLines(cmd.InOrStdin())
				if err != nil {
					return err
				}
				tokens = lines
			}

			e, err := a.engine()
			if err != nil {
				return err
			}
			p := &pipeline.Pipeline{Engine: e}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			results, err := p.DecryptAll(ctx, secret, salt, tokens)
			report := pipeline.Report{
				Payload: extract.Payload{SharedSecret: secret, Salt: salt, Tokens: tokens},
				Results: results,
			}
			if werr := writeReport(cmd.OutOrStdout(), report, asJSON); werr != nil {
				return werr
			}
			if err != nil {
				return err
			}

			log.Info(report.Status())
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "shared secret (default: saved password)")
	cmd.Flags().StringVar(&salt, "salt", "", "salt (default: saved password)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "write results as JSON")
	return cmd
}

// resolveSecrets fills secret and salt that were not given as flags from the
// saved defaults.
func (a *app) resolveSecrets(cmd *cobra.Command, secret, salt *string) error {
	if cmd.Flags().Changed("secret") && cmd.Flags().Changed("salt") {
		return nil
	}
	if err := a.loadDefaults(); err != nil {
		return err
	}
	if !a.defaults.IsSet() {
		log.Warn("No saved password; using flags and empty values")
		return nil
	}

	defSecret, defSalt := a.defaults.Get()
	if !cmd.Flags().Changed("secret") {
		*secret = defSecret
	}
	if !cmd.Flags().Changed("salt") {
		*salt = defSalt
	}
	return nil
}

func readLines(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(bufio.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	lines := trimLines(strings.TrimSuffix(string(data), "\n"))
	if len(lines) == 1 && lines[0] == "" {
		return nil, nil
	}
	return lines, nil
}

func newEncryptCmd(a *app) *cobra.Command {
	var secret, salt string
	var source bool

	cmd := &cobra.Command{
		Use:   "encrypt [plaintext...]",
		Short: "Encrypt plaintexts the way the target binaries do (for fixtures)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.resolveSecrets(cmd, &secret, &salt); err != nil {
				return err
			}

			plaintexts := args
			if len(plaintexts) == 0 {
				lines, err := readLines(cmd.InOrStdin())
				if err != nil {
					return err
				}
				plaintexts = lines
			}

			e, err := a.engine()
			if err != nil {
				return err
			}

			tokens := make([]string, 0, len(plaintexts))
			for _, pt := range plaintexts {
				tok, err := e.Encrypt(secret, salt, pt)
				if err != nil {
					return fmt.Errorf("encrypting %q: %w", pt, err)
				}
				tokens = append(tokens, tok)
			}

			out := cmd.OutOrStdout()
			if source {
				return writeSource(out, a.cfg.Patterns, secret, salt, tokens)
			}
			for _, tok := range tokens {
				fmt.Fprintln(out, tok)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "shared secret (default: saved password)")
	cmd.Flags().StringVar(&salt, "salt", "", "salt (default: saved password)")
	cmd.Flags().BoolVar(&source, "source", false, "emit a decompiled-style C# class instead of bare tokens")
	return cmd
}

// writeSource prints a C# class shaped like decompiler output of a target
// binary, usable as input to "run --text".
func writeSource(w io.Writer, p extract.Patterns, secret, salt string, tokens []string) error {
	// extraction keeps escape sequences as written, so an escaped literal
	// would no longer derive the same key
	for _, v := range []string{secret, salt} {
		if escapeLiteral(v) != v {
			return fmt.Errorf("%q cannot be written as a C# literal without escapes", v)
		}
	}

	var b strings.Builder
	b.WriteString("public class Program\n{\n")
	fmt.Fprintf(&b, "\tprivate static string %s = \"%s\";\n\n", p.SecretField, secret)
	fmt.Fprintf(&b, "\tprivate static byte[] %s = Encoding.ASCII.GetBytes(\"%s\");\n\n", p.SaltField, salt)
	b.WriteString("\tpublic static void Main(string[] args)\n\t{\n")
	for i, tok := range tokens {
		fmt.Fprintf(&b, "\t\tstring s%d = %s(\"%s\", %s);\n", i, p.DecryptCall, tok, p.SecretField)
	}
	b.WriteString("\t}\n}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

var literalEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

func escapeLiteral(s string) string {
	return literalEscaper.Replace(s)
}
