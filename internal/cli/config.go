package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/compass/internal/config"
	"github.com/mrz1836/compass/internal/fileutil"
	compasserr "github.com/mrz1836/compass/pkg/errors"
)

// configCmd is the parent command for configuration operations.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and create the Compass configuration file.`,
}

// configInitCmd writes the default configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long: `Create a default configuration file at ~/.compass/config.yaml.

An existing file is left untouched unless --force is given.`,
	Example: `  compass config init
  compass config init --force`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// configShowCmd prints the effective configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Display the configuration after defaults, the config file, environment
variables and flags are applied. Secrets from the environment are never shown.`,
	Example: `  compass config show
  compass config show -o json`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// configGetCmd prints a single value.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configGetCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Get a configuration value",
	Long: `Get a configuration value by its dot separated YAML path.`,
	Example: `  compass config get provider.default_chain
  compass config get provider.rpc.137
  compass config get settings.known_contracts.1.token`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

// configPathCmd prints where the config file lives.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Long:  `Print the path of the configuration file for the current home directory.`,
	Example: `  compass config path
  compass --home /tmp/compass config path`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		outln(cmd.OutOrStdout(), config.Path(cfg.Home))
		return nil
	},
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var configForce bool

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	configCmd.GroupID = "config"
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configPathCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite existing configuration")
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path := config.Path(cfg.Home)

	defaults := config.Defaults()
	defaults.Home = cfg.Home

	data, err := config.Marshal(defaults)
	if err != nil {
		return compasserr.Wrap(err, "encoding default configuration")
	}

	err = fileutil.WriteFile(path, data, fileutil.Options{Overwrite: configForce})
	if errors.Is(err, fileutil.ErrExists) {
		return compasserr.WithSuggestion(
			compasserr.WithDetails(compasserr.ErrGeneral, map[string]string{"path": path}),
			"configuration already exists, use --force to overwrite it",
		)
	}
	if err != nil {
		return compasserr.Wrap(err, "writing config file")
	}

	w := cmd.OutOrStdout()
	out(w, "Configuration initialized at %s\n", path)
	outln(w)
	outln(w, "Edit this file to configure:")
	outln(w, "  - provider.rpc: RPC endpoint per chain id")
	outln(w, "  - provider.default_chain: chain the session starts on")
	outln(w, "  - settings.recipient: default transfer recipient")
	outln(w, "  - settings.known_contracts: token and pair per chain")
	outln(w, "  - keystore.file: encrypted mnemonic (see 'compass key import')")
	return nil
}

// configView is the show command result. YAML for text, the same tree as
// JSON otherwise.
type configView struct {
	cfg *config.Config
}

func (v configView) RenderText(w io.Writer) error {
	data, err := config.Marshal(v.cfg)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func (v configView) MarshalJSON() ([]byte, error) {
	tree, err := configTree(v.cfg)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := tree.Decode(&generic); err != nil {
		return nil, err
	}
	return json.Marshal(stringKeys(generic))
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	return formatter.Print(configView{cfg: cfg})
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	value, err := getConfigValue(cfg, args[0])
	if err != nil {
		return err
	}
	outln(cmd.OutOrStdout(), value)
	return nil
}

// configTree returns the configuration as a YAML document node.
func configTree(c *config.Config) (*yaml.Node, error) {
	data, err := config.Marshal(c)
	if err != nil {
		return nil, err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, compasserr.ErrConfigInvalid
	}
	return doc.Content[0], nil
}

// getConfigValue resolves a dot separated path against the YAML form of c.
// Scalars print as-is and anything else prints as YAML.
func getConfigValue(c *config.Config, path string) (string, error) {
	node, err := configTree(c)
	if err != nil {
		return "", err
	}

	for _, part := range strings.Split(path, ".") {
		node = lookupKey(node, part)
		if node == nil {
			return "", compasserr.WithSuggestion(
				compasserr.WithDetails(compasserr.ErrUnknownConfigKey, map[string]string{"path": path}),
				"run 'compass config show' to list the available keys",
			)
		}
	}

	if node.Kind == yaml.ScalarNode {
		return node.Value, nil
	}
	data, err := yaml.Marshal(node)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func lookupKey(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// stringKeys converts the map[string]any / map[any]any mix yaml.v3 decodes
// into something encoding/json accepts.
func stringKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = stringKeys(val)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = stringKeys(val)
		}
		return m
	case []any:
		for i, val := range t {
			t[i] = stringKeys(val)
		}
		return t
	default:
		return v
	}
}
