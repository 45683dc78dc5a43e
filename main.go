package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"strdecrypt/internal/config"
	"strdecrypt/internal/decompile"
	"strdecrypt/internal/extract"
	"strdecrypt/internal/passphrase"
	"strdecrypt/internal/pipeline"
	"strdecrypt/internal/scheme"
	"strdecrypt/internal/secrets"
	"strdecrypt/internal/vault"
)

const Version = "1.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return newRootCmd().Execute()
}

// app carries what every subcommand needs after flags are parsed.
type app struct {
	configPath string
	debug      bool

	cfg      config.Config
	defaults *secrets.Store
}

func newRootCmd() *cobra.Command {
	a := &app{defaults: &secrets.Store{}}

	root := &cobra.Command{
		Use:   "strdecrypt",
		Short: "Recover encrypted string literals from .NET binaries",
		Long: `strdecrypt - recover the strings a .NET binary hides behind
encc.DecryptStringAES(...) calls.

The binary is decompiled, the embedded password (msaltpassss) and salt
(_salt) are located, and every encrypted literal is decrypted with
PBKDF2-SHA1 derived AES-256-CBC.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "strdecrypt.yaml", "path to YAML config")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "log debug output")

	root.AddCommand(
		newRunCmd(a),
		newExtractCmd(a),
		newDecryptCmd(a),
		newEncryptCmd(a),
		newPasswordCmd(a),
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	log.SetOutput(os.Stderr)
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	if a.debug {
		level = log.DebugLevel
	}
	log.SetLevel(level)

	log.Debugf("Config: %s, scheme %+v", a.configPath, cfg.Scheme)
	return nil
}

// loadDefaults reads the sealed defaults file, if any. The passphrase is only
// asked for when the file exists.
func (a *app) loadDefaults() error {
	path := a.cfg.Vault.Path
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("checking %s: %w", path, err)
	}

	pass, err := passphrase.Get("Vault passphrase: ")
	if err != nil {
		return fmt.Errorf("failed to get passphrase: %w", err)
	}
	defer vault.Zero(pass)

	return a.defaults.Load(path, pass)
}

func (a *app) engine() (*scheme.Engine, error) {
	return scheme.NewEngine(a.cfg.Scheme, scheme.WithWorkers(a.cfg.Workers))
}

func (a *app) newPipeline(textInput bool) (*pipeline.Pipeline, error) {
	x, err := extract.NewExtractor(a.cfg.Patterns)
	if err != nil {
		return nil, err
	}
	e, err := a.engine()
	if err != nil {
		return nil, err
	}

	var dc decompile.Decompiler = a.cfg.DecompileCommand()
	if textInput {
		dc = decompile.TextFile{}
	}

	return &pipeline.Pipeline{
		Decompiler: dc,
		Extractor:  x,
		Engine:     e,
		Defaults:   a.defaults,
		FoldASCII:  a.cfg.Decompiler.ASCIIFold,
	}, nil
}

// trimLines splits s into lines without trailing carriage returns.
func trimLines(s string) []string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, "\r")
	}
	return lines
}
