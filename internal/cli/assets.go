package cli

import (
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mrz1836/compass/internal/catalog"
	"github.com/mrz1836/compass/internal/output"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var assetsSelect string

// assetsCmd lists the catalog.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var assetsCmd = &cobra.Command{
	Use:   "assets",
	Short: "List the assets the provider advertises",
	Long: `List the asset catalog built from the provider's descriptor. Entries the
provider sent malformed are skipped with a warning.

With --select, the given asset becomes current and the provider is switched
to its chain before the list is printed.`,
	Example: `  compass assets
  compass assets --select polygon.mainnet.native.matic`,
	RunE: runAssets,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	assetsCmd.GroupID = "session"
	rootCmd.AddCommand(assetsCmd)
	assetsCmd.Flags().StringVar(&assetsSelect, "select", "", "asset id to make current")
}

// assetsOutput is the assets command result.
type assetsOutput struct {
	Selected string          `json:"selected,omitempty"`
	Assets   []catalog.Asset `json:"assets"`
}

func (a assetsOutput) RenderText(w io.Writer) error {
	if len(a.Assets) == 0 {
		outln(w, "The provider advertises no assets.")
		return nil
	}

	t := output.NewTable("", "ID", "SYMBOL", "CHAIN", "DECIMALS", "CONTRACT")
	t.AlignRight(4)
	for _, asset := range a.Assets {
		marker := ""
		if asset.ID == a.Selected {
			marker = "*"
		}
		contract := asset.ContractAddress.Hex()
		if asset.IsNative() {
			contract = "native"
		}
		t.AddRow(marker, asset.ID, asset.Symbol, describeChain(asset.ChainID), strconv.Itoa(int(asset.Decimals)), contract)
	}
	return t.RenderText(w)
}

func runAssets(cmd *cobra.Command, _ []string) error {
	conn, err := connect(cmd)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.selectIfRequested(cmd, assetsSelect); err != nil {
		return err
	}

	cat, err := conn.svc.Catalog()
	if err != nil {
		return err
	}
	res := assetsOutput{Assets: cat.Assets()}
	if selected, err := conn.svc.Selected(); err == nil {
		res.Selected = selected.ID
	}
	return formatter.Print(res)
}
