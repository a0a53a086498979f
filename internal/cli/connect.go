package cli

import (
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mrz1836/compass/internal/catalog"
	"github.com/mrz1836/compass/internal/chain"
	"github.com/mrz1836/compass/internal/output"
	"github.com/mrz1836/compass/internal/session"
)

// connectCmd bootstraps a session and reports it.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to the wallet provider and align the initial asset",
	Long: `Request account access, build the asset catalog from the provider's
descriptor, select the initial asset (the first one on provider.default_chain,
otherwise the first advertised) and switch the provider to its chain.`,
	Example: `  compass connect
  compass connect -o json`,
	RunE: runConnect,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	connectCmd.GroupID = "session"
	rootCmd.AddCommand(connectCmd)
}

// connectOutput is the connect command result.
type connectOutput struct {
	Session  *session.Session `json:"session"`
	Selected *catalog.Asset   `json:"selected,omitempty"`
	Assets   int              `json:"assets"`
	Dropped  []string         `json:"dropped,omitempty"`
}

func (c connectOutput) RenderText(w io.Writer) error {
	kv := output.KeyValues{
		{Key: "Address", Value: c.Session.Address.Hex()},
		{Key: "Alias", Value: orDash(c.Session.Alias)},
		{Key: "Chain", Value: describeChain(c.Session.ObservedChain)},
		{Key: "Assets", Value: strconv.Itoa(c.Assets)},
	}
	if c.Selected != nil {
		kv = append(kv, output.KeyValue{Key: "Selected", Value: c.Selected.ID + " (" + c.Selected.Symbol + ")"})
	} else {
		kv = append(kv, output.KeyValue{Key: "Selected", Value: "-"})
	}
	return kv.RenderText(w)
}

func runConnect(cmd *cobra.Command, _ []string) error {
	conn, err := connect(cmd)
	if err != nil {
		return err
	}
	defer conn.Close()

	res := conn.bootstrap
	return formatter.Print(connectOutput{
		Session:  res.Session,
		Selected: res.Selected,
		Assets:   res.Assets,
		Dropped:  res.Dropped,
	})
}

// describeChain renders a chain id as "Polygon (137, 0x89)".
func describeChain(id chain.ID) string {
	return id.Name() + " (" + id.String() + ", " + id.Wire() + ")"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
