package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/jmerrifield20/keyregistry/pkg/client"
	"github.com/spf13/cobra"
)

func parseAddressArg(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// self returns the address of the configured account key.
func (a *cli) self() (common.Address, error) {
	key, err := client.LoadAccountKey(a.v.GetString("key_file"))
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

func (a *cli) mintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mint <address>",
		Short: "Issue a credential token to an address (requires admin_secret)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := parseAddressArg(args[0])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			id, err := c.Mint(cmd.Context(), to)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(),
				map[string]string{"token_id": id.Dec(), "owner": to.Hex()},
				func(w io.Writer) { fmt.Fprintf(w, "Minted token %s to %s\n", id.Dec(), to.Hex()) })
		},
	}
}

func (a *cli) ownerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "owner <token>",
		Short: "Show the current owner of a credential token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTokenArg(args[0])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			owner, err := c.OwnerOf(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(),
				map[string]string{"token_id": id.Dec(), "owner": owner.Hex()},
				func(w io.Writer) { fmt.Fprintln(w, owner.Hex()) })
		},
	}
}

func (a *cli) transferCmd() *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "transfer <token> <to>",
		Short: "Transfer a credential token (requires login)",
		Long: `Transfer moves a credential token to a new owner. The write-right over
every slot of the token moves with it immediately. --from defaults to the
address of the configured account key.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTokenArg(args[0])
			if err != nil {
				return err
			}
			to, err := parseAddressArg(args[1])
			if err != nil {
				return err
			}
			var fromAddr common.Address
			if from != "" {
				fromAddr, err = parseAddressArg(from)
			} else {
				fromAddr, err = a.self()
			}
			if err != nil {
				return err
			}

			c, err := a.client()
			if err != nil {
				return err
			}
			if err := c.Transfer(cmd.Context(), id, fromAddr, to); err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(),
				map[string]string{"token_id": id.Dec(), "from": fromAddr.Hex(), "to": to.Hex()},
				func(w io.Writer) { fmt.Fprintf(w, "Transferred token %s to %s\n", id.Dec(), to.Hex()) })
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "current owner address")
	return cmd
}

func (a *cli) approveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <token> <address>",
		Short: "Approve an address to write keys for a token (zero address clears)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTokenArg(args[0])
			if err != nil {
				return err
			}
			to, err := parseAddressArg(args[1])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			if err := c.Approve(cmd.Context(), id, to); err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(),
				map[string]string{"token_id": id.Dec(), "approved": to.Hex()},
				func(w io.Writer) { fmt.Fprintf(w, "Approved %s for token %s\n", to.Hex(), id.Dec()) })
		},
	}
}

func (a *cli) operatorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "operator <address> <true|false>",
		Short: "Grant or revoke operator rights over all of your tokens",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := parseAddressArg(args[0])
			if err != nil {
				return err
			}
			approved, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("approved must be true or false, got %q", args[1])
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			if err := c.SetOperator(cmd.Context(), op, approved); err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(),
				map[string]any{"operator": op.Hex(), "approved": approved},
				func(w io.Writer) { fmt.Fprintf(w, "Operator %s approved=%t\n", op.Hex(), approved) })
		},
	}
}
