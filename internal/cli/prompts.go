package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/mrz1836/compass/internal/keystore"
	"github.com/mrz1836/compass/internal/provider"
	compasserr "github.com/mrz1836/compass/pkg/errors"
)

// minPassphraseLength is the shortest passphrase accepted for a new file.
const minPassphraseLength = 8

// Prompt seams; tests replace them.
//
//nolint:gochecknoglobals // test seams
var (
	promptPasswordFn    = promptPassword
	promptNewPasswordFn = promptNewPassword
	promptConfirmFn     = promptConfirmation
	promptMnemonicFn    = promptMnemonic
	stdin               = bufio.NewReader(os.Stdin)
)

// promptPassword prompts for a secret with hidden input.
// The caller is responsible for zeroing the returned bytes after use.
func promptPassword(prompt string) ([]byte, error) {
	out(os.Stderr, "%s", prompt)

	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	outln(os.Stderr)

	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	return password, nil
}

// promptNewPassword prompts for a new passphrase with confirmation.
// The caller is responsible for zeroing the returned bytes after use.
func promptNewPassword() ([]byte, error) {
	password, err := promptPasswordFn("Choose a passphrase for the mnemonic file: ")
	if err != nil {
		return nil, err
	}

	if len(password) < minPassphraseLength {
		zeroBytes(password)
		return nil, compasserr.WithSuggestion(
			compasserr.ErrInvalidInput,
			fmt.Sprintf("passphrase must be at least %d characters", minPassphraseLength),
		)
	}

	confirm, err := promptPasswordFn("Confirm passphrase: ")
	if err != nil {
		zeroBytes(password)
		return nil, err
	}
	defer zeroBytes(confirm)

	if string(password) != string(confirm) {
		zeroBytes(password)
		return nil, compasserr.WithSuggestion(compasserr.ErrInvalidInput, "passphrases do not match")
	}
	return password, nil
}

// promptConfirmation asks a yes/no question; anything but y/yes is no.
func promptConfirmation(w io.Writer, question string) bool {
	out(w, "%s [y/N]: ", question)

	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	response := strings.ToLower(strings.TrimSpace(line))
	return response == "y" || response == "yes"
}

// promptMnemonic reads a mnemonic from one line of input. Hidden input is
// used on a terminal.
func promptMnemonic() (string, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := promptPasswordFn("Enter mnemonic (all words on one line): ")
		if err != nil {
			return "", err
		}
		defer zeroBytes(b)
		return keystore.NormalizeMnemonic(string(b)), nil
	}

	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", compasserr.WithSuggestion(compasserr.ErrInvalidInput, "no mnemonic provided on stdin")
	}
	return keystore.NormalizeMnemonic(line), nil
}

// approvalPrompt confirms each signing action the local provider performs.
func approvalPrompt(w io.Writer) provider.ApproveFunc {
	return func(_ context.Context, req provider.ApprovalRequest) (bool, error) {
		outln(w)
		out(w, "Approval required: %s on chain %s\n", req.Method, req.ChainID.String())
		if req.Summary != "" {
			out(w, "  %s\n", req.Summary)
		}
		return promptConfirmFn(w, "Approve?"), nil
	}
}

// zeroBytes clears sensitive data.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// out is a helper for CLI output that ignores write errors (standard pattern for CLI tools).
//
//nolint:errcheck // CLI output writes are intentionally unchecked
func out(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}

// outln is a helper for CLI output with newline.
//
//nolint:errcheck // CLI output writes are intentionally unchecked
func outln(w io.Writer, args ...any) {
	fmt.Fprintln(w, args...)
}
