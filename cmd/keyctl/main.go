// Command keyctl is the command-line client for the key registry.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmerrifield20/keyregistry/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

const defaultRegistryURL = "http://localhost:8080"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// cli holds the resolved settings shared by every subcommand.
type cli struct {
	v           *viper.Viper
	cfgFile     string
	registryURL string
	format      string
}

func newRootCmd() *cobra.Command {
	app := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:   "keyctl",
		Short: "Key registry CLI",
		Long: `keyctl publishes and reads public keys held in a credential-gated
key registry, and manages the credential tokens that gate writes.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.loadConfig()
		},
	}

	root.PersistentFlags().StringVar(&app.cfgFile, "config", "", "config file (default ~/.keyctl/config.yaml)")
	root.PersistentFlags().StringVar(&app.registryURL, "registry", "", "registry URL (default "+defaultRegistryURL+")")
	root.PersistentFlags().StringVar(&app.format, "format", "text", "output format: text, json or yaml")

	root.AddCommand(
		app.loginCmd(),
		app.keygenCmd(),
		app.setCmd(),
		app.getCmd(),
		app.latestCmd(),
		app.historyCmd(),
		app.namesCmd(),
		app.mintCmd(),
		app.ownerCmd(),
		app.transferCmd(),
		app.approveCmd(),
		app.operatorCmd(),
		versionCmd(),
	)
	return root
}

func (a *cli) loadConfig() error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(filepath.Join(homeDir(), ".keyctl"))
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
	}
	a.v.SetEnvPrefix("keyctl")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	a.v.SetDefault("registry_url", defaultRegistryURL)
	a.v.SetDefault("key_file", filepath.Join(homeDir(), ".keyctl", "account.key"))
	a.v.SetDefault("token_file", filepath.Join(homeDir(), ".keyctl", "token"))
	a.v.SetDefault("admin_secret", "")

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	if a.registryURL == "" {
		a.registryURL = a.v.GetString("registry_url")
	}
	switch a.format {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown --format %q (want text, json or yaml)", a.format)
	}
	return nil
}

// client builds an SDK client carrying the saved caller token, if any.
func (a *cli) client() (*client.Client, error) {
	opts := []client.Option{}
	if tok, err := os.ReadFile(a.v.GetString("token_file")); err == nil {
		if s := strings.TrimSpace(string(tok)); s != "" {
			opts = append(opts, client.WithBearerToken(s))
		}
	}
	if secret := a.v.GetString("admin_secret"); secret != "" {
		opts = append(opts, client.WithAdminSecret(secret))
	}
	return client.New(a.registryURL, opts...)
}

// print writes v as JSON or YAML per --format, and calls text otherwise.
func (a *cli) print(w io.Writer, v any, text func(io.Writer)) error {
	switch a.format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		// Go through JSON first so addresses and token ids use their text
		// form instead of raw byte arrays.
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	}
	text(w)
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the keyctl version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "keyctl %s\n", version)
		},
	}
}
