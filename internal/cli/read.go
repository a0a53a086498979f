package cli

import (
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mrz1836/compass/internal/output"
	"github.com/mrz1836/compass/internal/query"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var readAsset string

// readCmd is the parent command for read-only contract queries.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read token and liquidity pool state",
	Long: `Run read-only contract queries through the provider. Reads are batched and
concurrent; a failed read fails the whole command.`,
}

// readTokenCmd introspects the known token on the current chain.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var readTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Show name, symbol, decimals, supply and balance of the chain's known token",
	Long: `Read the token registered for the provider's current chain in
settings.known_contracts. Chains without an entry fail with
UNKNOWN_CONTRACT_FOR_CHAIN.`,
	Example: `  compass read token
  compass read token --asset polygon.mainnet.native.matic`,
	Args: cobra.NoArgs,
	RunE: runReadToken,
}

// readPoolCmd reads the reference chain's pair reserves.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var readPoolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Show the reserves of the reference chain's liquidity pair",
	Long: `Switch the provider to settings.reference_chain and read token0, token1
and getReserves from the registered pair.`,
	Example: `  compass read pool -o json`,
	Args: cobra.NoArgs,
	RunE: runReadPool,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	readCmd.GroupID = "operations"
	rootCmd.AddCommand(readCmd)
	readCmd.AddCommand(readTokenCmd)
	readCmd.AddCommand(readPoolCmd)

	readTokenCmd.Flags().StringVar(&readAsset, "asset", "", "select this asset (and its chain) first")
}

type tokenOutput struct {
	*query.TokenInfo
}

func (t tokenOutput) RenderText(w io.Writer) error {
	return output.KeyValues{
		{Key: "Chain", Value: describeChain(t.ChainID)},
		{Key: "Contract", Value: t.Contract.Hex()},
		{Key: "Name", Value: t.Name},
		{Key: "Symbol", Value: t.Symbol},
		{Key: "Decimals", Value: strconv.Itoa(int(t.Decimals))},
		{Key: "Total supply", Value: t.TotalSupplyFormatted},
		{Key: "Balance", Value: t.BalanceFormatted + " (" + t.Owner.Hex() + ")"},
	}.RenderText(w)
}

type poolOutput struct {
	*query.PoolReserves
}

func (p poolOutput) RenderText(w io.Writer) error {
	return output.KeyValues{
		{Key: "Chain", Value: describeChain(p.ChainID)},
		{Key: "Pair", Value: p.Pair.Hex()},
		{Key: "Token0", Value: p.Token0.Hex()},
		{Key: "Token1", Value: p.Token1.Hex()},
		{Key: "Reserve0", Value: p.Reserve0.String()},
		{Key: "Reserve1", Value: p.Reserve1.String()},
		{Key: "Updated", Value: strconv.FormatUint(uint64(p.BlockTimestampLast), 10)},
	}.RenderText(w)
}

func runReadToken(cmd *cobra.Command, _ []string) error {
	conn, err := connect(cmd)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.selectIfRequested(cmd, readAsset); err != nil {
		return err
	}

	info, err := conn.svc.ReadToken(conn.ctx)
	if err != nil {
		return err
	}
	return formatter.Print(tokenOutput{info})
}

func runReadPool(cmd *cobra.Command, _ []string) error {
	conn, err := connect(cmd)
	if err != nil {
		return err
	}
	defer conn.Close()

	res, err := conn.svc.ReadPool(conn.ctx)
	if err != nil {
		return err
	}
	return formatter.Print(poolOutput{res})
}

