package cli

import (
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/compass/internal/config"
	"github.com/mrz1836/compass/internal/fileutil"
	"github.com/mrz1836/compass/internal/keystore"
	"github.com/mrz1836/compass/internal/output"
	compasserr "github.com/mrz1836/compass/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var keyForce bool

// keyCmd is the parent command for the local signing key.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the local provider's signing key",
	Long: `The local provider derives its account from a BIP-39 mnemonic, taken from
COMPASS_MNEMONIC or from an age-encrypted file at keystore.file.`,
}

// keyImportCmd seals a mnemonic into keystore.file.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var keyImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Encrypt a mnemonic into the keystore file",
	Long: `Read a BIP-39 mnemonic, encrypt it with a passphrase and write it to
keystore.file. On a terminal the mnemonic is read with hidden input, otherwise
from the first line of stdin.`,
	Example: `  compass key import
  compass key import --force`,
	Args: cobra.NoArgs,
	RunE: runKeyImport,
}

// keyAddressCmd shows the derived account.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var keyAddressCmd = &cobra.Command{
	Use:   "address",
	Short: "Show the account the local provider signs with",
	Long: `Derive the signing account from COMPASS_MNEMONIC or the keystore file and
print its address and derivation path. The provider is not contacted.`,
	Example: `  compass key address
  COMPASS_MNEMONIC="..." compass key address -o json`,
	Args: cobra.NoArgs,
	RunE: runKeyAddress,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	keyCmd.GroupID = "config"
	rootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(keyImportCmd)
	keyCmd.AddCommand(keyAddressCmd)

	keyImportCmd.Flags().BoolVar(&keyForce, "force", false, "overwrite an existing keystore file")
}

// keyOutput describes the derived account.
type keyOutput struct {
	Address string `json:"address"`
	Path    string `json:"derivation_path"`
	File    string `json:"file,omitempty"`
}

func (k keyOutput) RenderText(w io.Writer) error {
	kv := output.KeyValues{
		{Key: "Address", Value: k.Address},
		{Key: "Path", Value: k.Path},
	}
	if k.File != "" {
		kv = append(kv, output.KeyValue{Key: "File", Value: k.File})
	}
	return kv.RenderText(w)
}

func runKeyImport(cmd *cobra.Command, _ []string) error {
	path := config.ExpandHome(cfg.Keystore.File)
	if path == "" {
		return compasserr.WithSuggestion(compasserr.ErrConfigInvalid, "set keystore.file in the config file")
	}

	mnemonic, err := promptMnemonicFn()
	if err != nil {
		return err
	}
	if err := keystore.ValidateMnemonic(mnemonic); err != nil {
		return err
	}

	// Derive first so a bad mnemonic never reaches the passphrase prompt.
	key, err := keystore.FromMnemonic(mnemonic, "", cfg.Keystore.Account, cfg.Keystore.Index)
	if err != nil {
		return err
	}
	defer key.Destroy()

	passphrase, err := promptNewPasswordFn()
	if err != nil {
		return err
	}
	defer zeroBytes(passphrase)

	sealed, err := keystore.SealMnemonic(mnemonic, string(passphrase), cfg.Keystore.ScryptWorkFactor)
	if err != nil {
		return err
	}

	err = fileutil.WriteFile(path, sealed, fileutil.Options{Perm: 0o600, Overwrite: keyForce})
	if errors.Is(err, fileutil.ErrExists) {
		return compasserr.WithSuggestion(
			compasserr.WithDetails(compasserr.ErrGeneral, map[string]string{"path": path}),
			"a keystore file already exists, use --force to replace it",
		)
	}
	if err != nil {
		return compasserr.Wrap(err, "writing keystore file")
	}

	if !formatter.IsJSON() {
		output.Success(cmd.ErrOrStderr(), "mnemonic encrypted to %s", path)
	}
	return formatter.Print(keyOutput{Address: key.Address().Hex(), Path: key.Path(), File: path})
}

func runKeyAddress(_ *cobra.Command, _ []string) error {
	key, err := keystore.Load(keystore.Source{
		Mnemonic: cfg.Keystore.Mnemonic,
		File:     config.ExpandHome(cfg.Keystore.File),
		Passphrase: func() (string, error) {
			if cfg.Keystore.Passphrase != "" {
				return cfg.Keystore.Passphrase, nil
			}
			b, err := promptPasswordFn("Mnemonic file passphrase: ")
			if err != nil {
				return "", err
			}
			defer zeroBytes(b)
			return string(b), nil
		},
		Account: cfg.Keystore.Account,
		Index:   cfg.Keystore.Index,
	})
	if err != nil {
		return err
	}
	defer key.Destroy()

	res := keyOutput{Address: key.Address().Hex(), Path: key.Path()}
	if cfg.Keystore.Mnemonic == "" {
		res.File = config.ExpandHome(cfg.Keystore.File)
	}
	return formatter.Print(res)
}
