// Package passphrase reads secrets from the environment or the terminal.
package passphrase

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"syscall"

	"golang.org/x/term"

	"strdecrypt/internal/vault"
)

// EnvVar holds the vault passphrase for non-interactive use.
const EnvVar = "STRDECRYPT_PASSPHRASE"

// Get returns the vault passphrase from EnvVar, or prompts for it.
func Get(prompt string) ([]byte, error) {
	// First check environment variable
	if envPass := os.Getenv(EnvVar); envPass != "" {
		return []byte(envPass), nil
	}
	// Read from terminal
	return Read(prompt)
}

func GetWithConfirm(prompt, confirmPrompt string) ([]byte, error) {
	// First check environment variable
	if envPass := os.Getenv(EnvVar); envPass != "" {
		return []byte(envPass), nil
	}

	// Read from terminal
	pass, err := Read(prompt)
	if err != nil {
		return nil, err
	}

	// Confirm
	confirm, err := Read(confirmPrompt)
	if err != nil {
		vault.Zero(pass)
		return nil, err
	}
	defer vault.Zero(confirm)

	if !bytes.Equal(pass, confirm) {
		vault.Zero(pass)
		return nil, fmt.Errorf("passphrases do not match")
	}
	return pass, nil
}

// Read prompts on stderr and reads one line without echo. When stdin is piped
// it falls back to /dev/tty.
func Read(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)

	var pass []byte
	var err error

	if term.IsTerminal(int(syscall.Stdin)) {
		// STDIN is a terminal, use secure input
		pass, err = term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
	} else {
		// STDIN is not a terminal (piped), try to read from /dev/tty
		tty, ttyErr := os.Open("/dev/tty")
		if ttyErr != nil {
			// On Windows or when /dev/tty is not available
			if runtime.GOOS == "windows" {
				return nil, fmt.Errorf("passphrase must be set via %s environment variable when STDIN is piped", EnvVar)
			}
			return nil, fmt.Errorf("cannot read passphrase: STDIN is piped and /dev/tty is not available. Set %s environment variable", EnvVar)
		}
		defer tty.Close()

		pass, err = term.ReadPassword(int(tty.Fd()))
		// Print newline after password input
		fmt.Fprintln(os.Stderr)
	}

	if err != nil {
		return nil, err
	}
	return pass, nil
}
