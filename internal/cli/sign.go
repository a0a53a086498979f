package cli

import (
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/compass/internal/output"
	"github.com/mrz1836/compass/internal/signing"
	compasserr "github.com/mrz1836/compass/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	signTypedFile string
	signAsset     string
)

// signCmd is the parent command for signature requests.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Request signatures from the connected account",
	Long: `Request a personal message signature or an EIP-712 structured data
signature. Every signature is recovered locally and must match the connected
account.`,
}

// signMessageCmd requests a personal_sign signature.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var signMessageCmd = &cobra.Command{
	Use:   "message [TEXT]",
	Short: "Sign a text message (personal_sign)",
	Long: `Sign a text message with the connected account. Without TEXT the message
is read from stdin.`,
	Example: `  compass sign message "hello compass"
  echo -n "hello" | compass sign message`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSignMessage,
}

// signTypedCmd requests an EIP-712 signature.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var signTypedCmd = &cobra.Command{
	Use:   "typed",
	Short: "Sign EIP-712 typed data (eth_signTypedData_v4)",
	Long: `Sign an EIP-712 document. With signing.chain_binding set to require (the
default) a domain without chainId is bound to the session's chain, and a
domain bound to another chain switches the provider first.`,
	Example: `  compass sign typed --file permit.json
  cat permit.json | compass sign typed`,
	Args: cobra.NoArgs,
	RunE: runSignTyped,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	signCmd.GroupID = "operations"
	rootCmd.AddCommand(signCmd)
	signCmd.AddCommand(signMessageCmd)
	signCmd.AddCommand(signTypedCmd)

	signCmd.PersistentFlags().StringVar(&signAsset, "asset", "", "select this asset (and its chain) before signing")
	signTypedCmd.Flags().StringVarP(&signTypedFile, "file", "f", "", "typed data JSON file (default: stdin)")
}

// messageOutput renders a message signature.
type messageOutput struct {
	*signing.MessageSignature
}

func (m messageOutput) RenderText(w io.Writer) error {
	return output.KeyValues{
		{Key: "Signer", Value: m.Signer.Hex()},
		{Key: "Message", Value: m.Message},
		{Key: "Signature", Value: m.Signature},
	}.RenderText(w)
}

// typedOutput renders a typed data signature.
type typedOutput struct {
	*signing.TypedDataSignature
}

func (t typedOutput) RenderText(w io.Writer) error {
	kv := output.KeyValues{
		{Key: "Signer", Value: t.Signer.Hex()},
		{Key: "Primary type", Value: t.PrimaryType},
		{Key: "Hash", Value: t.Hash.Hex()},
	}
	if t.ChainID != 0 {
		kv = append(kv, output.KeyValue{Key: "Chain", Value: describeChain(t.ChainID)})
	}
	kv = append(kv, output.KeyValue{Key: "Signature", Value: t.Signature})
	return kv.RenderText(w)
}

func runSignMessage(cmd *cobra.Command, args []string) error {
	var msg string
	if len(args) == 1 {
		msg = args[0]
	} else {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return compasserr.Wrap(err, "reading message from stdin")
		}
		msg = strings.TrimSuffix(string(data), "\n")
	}
	if msg == "" {
		return compasserr.WithSuggestion(compasserr.ErrInvalidInput, "provide the message as an argument or on stdin")
	}

	conn, err := connect(cmd)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.selectIfRequested(cmd, signAsset); err != nil {
		return err
	}

	sig, err := conn.svc.SignMessage(conn.ctx, []byte(msg))
	if err != nil {
		return err
	}
	return formatter.Print(messageOutput{sig})
}

func runSignTyped(cmd *cobra.Command, _ []string) error {
	var (
		data []byte
		err  error
	)
	if signTypedFile == "" || signTypedFile == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		// #nosec G304 -- path is an explicit user argument
		data, err = os.ReadFile(signTypedFile)
	}
	if err != nil {
		return compasserr.WithCause(compasserr.ErrInvalidInput, err)
	}

	td, err := signing.ParseTypedData(data)
	if err != nil {
		return err
	}

	conn, err := connect(cmd)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.selectIfRequested(cmd, signAsset); err != nil {
		return err
	}

	sig, err := conn.svc.SignTypedData(conn.ctx, td)
	if err != nil {
		return err
	}
	return formatter.Print(typedOutput{sig})
}
