package main

import (
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"strdecrypt/internal/passphrase"
	"strdecrypt/internal/secrets"
	"strdecrypt/internal/vault"
)

func newPasswordCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Manage the default shared secret and salt",
		Long: `The saved shared secret and salt are used whenever a binary does not
declare its own, and by "decrypt" and "encrypt" when --secret/--salt are
not given. They are sealed with a passphrase (Argon2id + AES-256-GCM);
set STRDECRYPT_PASSPHRASE to avoid the prompt.`,
	}

	cmd.AddCommand(
		newPasswordSetCmd(a),
		newPasswordShowCmd(a),
		newPasswordClearCmd(a),
	)
	return cmd
}

func newPasswordSetCmd(a *app) *cobra.Command {
	var secret, salt, memory string
	var iterations uint32

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Save a default shared secret and salt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("secret") {
				b, err := passphrase.Read("Shared secret: ")
				if err != nil {
					return fmt.Errorf("failed to read shared secret: %w", err)
				}
				secret = string(b)
				vault.Zero(b)
			}
			if !cmd.Flags().Changed("salt") {
				b, err := passphrase.Read("Salt: ")
				if err != nil {
					return fmt.Errorf("failed to read salt: %w", err)
				}
				salt = string(b)
				vault.Zero(b)
			}

			opts := a.cfg.VaultOptions()
			if cmd.Flags().Changed("memory") {
				m, err := parseMemory(memory)
				if err != nil {
					return fmt.Errorf("invalid memory value: %w", err)
				}
				opts.Argon2Memory = m
			}
			if cmd.Flags().Changed("iterations") {
				if iterations < 1 {
					return fmt.Errorf("iterations must be at least 1")
				}
				opts.Argon2Time = iterations
			}

			pass, err := passphrase.GetWithConfirm("Vault passphrase: ", "Confirm passphrase: ")
			if err != nil {
				return fmt.Errorf("failed to get passphrase: %w", err)
			}
			defer vault.Zero(pass)

			a.defaults.Set(secret, salt)
			if err := a.defaults.Save(a.cfg.Vault.Path, pass, opts); err != nil {
				return err
			}

			log.Infof("Saved default password to %s", a.cfg.Vault.Path)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "shared secret (prompted when omitted)")
	cmd.Flags().StringVar(&salt, "salt", "", "salt (prompted when omitted)")
	cmd.Flags().StringVarP(&memory, "memory", "m", "", "Argon2 memory cost, e.g. 64M or 1G (default from config)")
	cmd.Flags().Uint32VarP(&iterations, "iterations", "i", 0, "Argon2 iterations (default from config)")
	return cmd
}

func newPasswordShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the saved shared secret and salt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadDefaults(); err != nil {
				return err
			}
			if !a.defaults.IsSet() {
				return fmt.Errorf("no saved password at %s", a.cfg.Vault.Path)
			}

			secret, salt := a.defaults.Get()
			fmt.Fprintf(cmd.OutOrStdout(), "Shared secret: %s\nSalt: %s\n", secret, salt)
			return nil
		},
	}
}

func newPasswordClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the saved shared secret and salt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.defaults.Clear()
			if err := secrets.Remove(a.cfg.Vault.Path); err != nil {
				return err
			}
			log.Infof("Removed %s", a.cfg.Vault.Path)
			return nil
		},
	}
}

// parseMemory parses memory strings like "64", "64M", "64MB", "1G", "1GB"
// into KB. Bare numbers are treated as MB.
func parseMemory(s string) (uint32, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	multiplier := uint64(1024) // default MB to KB

	if strings.HasSuffix(s, "GB") || strings.HasSuffix(s, "G") {
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(strings.TrimSuffix(s, "GB"), "G")
	} else if strings.HasSuffix(s, "MB") || strings.HasSuffix(s, "M") {
		s = strings.TrimSuffix(strings.TrimSuffix(s, "MB"), "M")
	} else if strings.HasSuffix(s, "KB") || strings.HasSuffix(s, "K") {
		multiplier = 1
		s = strings.TrimSuffix(strings.TrimSuffix(s, "KB"), "K")
	}

	val, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}

	result := val * multiplier
	if result > 0xFFFFFFFF {
		return 0, fmt.Errorf("memory value too large")
	}
	if result < 1024 {
		return 0, fmt.Errorf("memory must be at least 1MB")
	}

	return uint32(result), nil
}
