package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"strdecrypt/internal/decompile"
	"strdecrypt/internal/extract"
	"strdecrypt/internal/scheme"
	"strdecrypt/internal/vault"
)

// Config holds everything the tool reads from its YAML file.
type Config struct {
	Scheme     scheme.Params    `yaml:"scheme"`
	Patterns   extract.Patterns `yaml:"patterns"`
	Decompiler DecompilerConfig `yaml:"decompiler"`
	Vault      VaultConfig      `yaml:"vault"`

	// Workers bounds parallel token decryption; 0 means one per CPU.
	Workers  int    `yaml:"workers"`
	LogLevel string `yaml:"log_level"`
}

// DecompilerConfig describes the external decompiler invocation.
type DecompilerConfig struct {
	Command   string        `yaml:"command"`
	Args      []string      `yaml:"args"`
	Timeout   time.Duration `yaml:"timeout"`
	ASCIIFold bool          `yaml:"ascii_fold"`
}

// VaultConfig locates the sealed defaults file.
type VaultConfig struct {
	Path         string `yaml:"path"`
	Argon2Memory uint32 `yaml:"argon2_memory"` // KB
	Argon2Time   uint32 `yaml:"argon2_time"`
}

// Default returns Config with the values of the target scheme.
func Default() Config {
	dc := decompile.DefaultCommand()
	vo := vault.DefaultOptions()

	return Config{
		Scheme:   scheme.DefaultParams(),
		Patterns: extract.DefaultPatterns(),
		Decompiler: DecompilerConfig{
			Command:   dc.Name,
			Args:      dc.Args,
			Timeout:   dc.Timeout,
			ASCIIFold: true,
		},
		Vault: VaultConfig{
			Path:         DefaultVaultPath(),
			Argon2Memory: vo.Argon2Memory,
			Argon2Time:   vo.Argon2Time,
		},
		LogLevel: "info",
	}
}

// DefaultVaultPath is <user config dir>/strdecrypt/defaults.sealed, or a file in
// the working directory when there is no user config dir.
func DefaultVaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "strdecrypt-defaults.sealed"
	}
	return filepath.Join(dir, "strdecrypt", "defaults.sealed")
}

// Load loads config from a YAML file on top of the defaults.
// If the file doesn't exist, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := c.Scheme.Validate(); err != nil {
		return fmt.Errorf("scheme: %w", err)
	}
	if c.Decompiler.Command == "" {
		return fmt.Errorf("decompiler: command is required")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	return nil
}

// DecompileCommand builds the decompiler collaborator from the config.
func (c Config) DecompileCommand() *decompile.Command {
	return &decompile.Command{
		Name:    c.Decompiler.Command,
		Args:    c.Decompiler.Args,
		Timeout: c.Decompiler.Timeout,
	}
}

func (c Config) VaultOptions() vault.Options {
	return vault.Options{
		UseBase64:    true,
		Argon2Memory: c.Vault.Argon2Memory,
		Argon2Time:   c.Vault.Argon2Time,
	}
}
