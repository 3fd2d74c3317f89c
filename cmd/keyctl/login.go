package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/jmerrifield20/keyregistry/pkg/client"
	"github.com/spf13/cobra"
)

func (a *cli) keygenCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an account key for signing in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.v.GetString("key_file")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			key, err := client.GenerateAccountKey(path)
			if err != nil {
				return err
			}
			addr := crypto.PubkeyToAddress(key.PublicKey)
			return a.print(cmd.OutOrStdout(),
				map[string]string{"address": addr.Hex(), "key_file": path},
				func(w io.Writer) {
					fmt.Fprintf(w, "Address:  %s\n", addr.Hex())
					fmt.Fprintf(w, "Key file: %s\n", path)
				})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing key file")
	return cmd
}

func (a *cli) loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign the registry's login challenge and save the caller token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f := cmd.Flags().Lookup("key"); f != nil && f.Changed {
				a.v.Set("key_file", f.Value.String())
			}
			key, err := client.LoadAccountKey(a.v.GetString("key_file"))
			if err != nil {
				return err
			}

			c, err := client.New(a.registryURL)
			if err != nil {
				return err
			}
			token, err := c.Login(cmd.Context(), key)
			if err != nil {
				return err
			}

			tokenFile := a.v.GetString("token_file")
			if err := os.MkdirAll(filepath.Dir(tokenFile), 0o700); err != nil {
				return fmt.Errorf("create token dir: %w", err)
			}
			if err := os.WriteFile(tokenFile, []byte(token+"\n"), 0o600); err != nil {
				return fmt.Errorf("save token: %w", err)
			}

			addr := crypto.PubkeyToAddress(key.PublicKey)
			_, expiry := c.Token()
			return a.print(cmd.OutOrStdout(),
				map[string]any{"address": addr.Hex(), "expires_at": expiry},
				func(w io.Writer) {
					fmt.Fprintf(w, "Logged in as %s (token expires %s)\n", addr.Hex(), expiry.Format("2006-01-02 15:04:05"))
				})
		},
	}
	cmd.Flags().String("key", "", "account key file (default ~/.keyctl/account.key)")
	return cmd
}
