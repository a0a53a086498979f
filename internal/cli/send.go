package cli

import (
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mrz1836/compass/internal/chain"
	"github.com/mrz1836/compass/internal/dispatch"
	"github.com/mrz1836/compass/internal/output"
	"github.com/mrz1836/compass/internal/service/wallet"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	sendAsset  string
	sendTo     string
	sendAmount string
	sendChain  string
)

// sendCmd is the parent command for transfers.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send native coins or tokens",
	Long: `Build, sign and broadcast a transfer, then wait for one confirmation.
The provider is switched to the asset's chain first. Amounts are decimal
strings scaled by the asset's own decimals. Nothing is retried.

Without --to, settings.recipient from the config file is used.`,
}

// sendNativeCmd sends a native asset.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var sendNativeCmd = &cobra.Command{
	Use:   "native",
	Short: "Send a native asset (ETH, POL, ...)",
	Long: `Send a native asset. The asset defaults to the current selection.`,
	Example: `  compass send native --amount 0.01 --to 0x70997970C51812dc3A010C7d01b50e0d17dc79C8
  compass send native --asset polygon.mainnet.native.matic --amount 1`,
	RunE: runSendNative,
}

// sendTokenCmd sends a catalog token through its transfer call.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var sendTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Send a token from the catalog (ERC-20 transfer)",
	Long: `Send a token asset by calling transfer(address,uint256) on its contract.`,
	Example: `  compass send token --asset ethereum.mainnet.usdc --amount 25 --to 0x...`,
	RunE: runSendToken,
}

// sendKnownCmd sends the token registered for a chain.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var sendKnownCmd = &cobra.Command{
	Use:   "known",
	Short: "Send the token registered for a chain in settings.known_contracts",
	Long: `Send the known token of a chain (USDC on Ethereum and USDT on Polygon by
default). --chain accepts decimal or 0x-prefixed hex and defaults to the
provider's current chain.`,
	Example: `  compass send known --chain 137 --amount 5 --to 0x...`,
	RunE: runSendKnown,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	sendCmd.GroupID = "operations"
	rootCmd.AddCommand(sendCmd)
	sendCmd.AddCommand(sendNativeCmd)
	sendCmd.AddCommand(sendTokenCmd)
	sendCmd.AddCommand(sendKnownCmd)

	sendCmd.PersistentFlags().StringVar(&sendTo, "to", "", "recipient address (default: settings.recipient)")
	sendCmd.PersistentFlags().StringVar(&sendAmount, "amount", "", "decimal amount to send (required)")

	sendNativeCmd.Flags().StringVar(&sendAsset, "asset", "", "asset id (default: current selection)")
	sendTokenCmd.Flags().StringVar(&sendAsset, "asset", "", "asset id (default: current selection)")
	sendKnownCmd.Flags().StringVar(&sendChain, "chain", "", "chain id, decimal or hex (default: current chain)")

	_ = sendCmd.MarkPersistentFlagRequired("amount")
}

// sendOutput renders a transfer result.
type sendOutput struct {
	*dispatch.Result
}

func (s sendOutput) RenderText(w io.Writer) error {
	kv := output.KeyValues{
		{Key: "Hash", Value: s.Hash.Hex()},
		{Key: "Status", Value: s.Status},
		{Key: "Chain", Value: describeChain(s.ChainID)},
		{Key: "From", Value: s.From.Hex()},
		{Key: "Recipient", Value: s.Recipient.Hex()},
		{Key: "Amount", Value: s.Amount + " " + s.Symbol},
	}
	if s.Kind == dispatch.KindContract {
		kv = append(kv, output.KeyValue{Key: "Contract", Value: s.To.Hex()})
	}
	if s.BlockNumber != 0 {
		kv = append(kv,
			output.KeyValue{Key: "Block", Value: strconv.FormatUint(s.BlockNumber, 10)},
			output.KeyValue{Key: "Gas used", Value: strconv.FormatUint(s.GasUsed, 10)},
		)
	}
	return kv.RenderText(w)
}

func runSendNative(cmd *cobra.Command, _ []string) error {
	return runSend(cmd, func(conn *connected) (*dispatch.Result, error) {
		return conn.svc.SendNative(conn.ctx, wallet.SendRequest{AssetID: sendAsset, To: sendTo, Amount: sendAmount})
	})
}

func runSendToken(cmd *cobra.Command, _ []string) error {
	return runSend(cmd, func(conn *connected) (*dispatch.Result, error) {
		return conn.svc.SendToken(conn.ctx, wallet.SendRequest{AssetID: sendAsset, To: sendTo, Amount: sendAmount})
	})
}

func runSendKnown(cmd *cobra.Command, _ []string) error {
	var id chain.ID
	if sendChain != "" {
		parsed, err := chain.ParseID(sendChain)
		if err != nil {
			return err
		}
		id = parsed
	}
	return runSend(cmd, func(conn *connected) (*dispatch.Result, error) {
		return conn.svc.SendKnownToken(conn.ctx, wallet.KnownSendRequest{ChainID: id, To: sendTo, Amount: sendAmount})
	})
}

// runSend connects, runs one transfer and prints whatever result exists. A
// transfer that was broadcast but failed confirmation still prints its hash.
func runSend(cmd *cobra.Command, send func(*connected) (*dispatch.Result, error)) error {
	conn, err := connect(cmd)
	if err != nil {
		return err
	}
	defer conn.Close()

	res, err := send(conn)
	if res != nil {
		if printErr := formatter.Print(sendOutput{res}); printErr != nil && err == nil {
			err = printErr
		}
	}
	return err
}
