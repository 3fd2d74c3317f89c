package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/holiman/uint256"
	"github.com/jmerrifield20/keyregistry/pkg/client"
	"github.com/spf13/cobra"
)

func parseTokenArg(s string) (*uint256.Int, error) {
	id, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid token id %q: %w", s, err)
	}
	return id, nil
}

func printRecord(w io.Writer, rec *client.KeyRecord) {
	fmt.Fprintf(w, "Token:      %s\n", rec.TokenID)
	fmt.Fprintf(w, "Name:       %s\n", rec.Name)
	fmt.Fprintf(w, "Index:      %d\n", rec.Index)
	fmt.Fprintf(w, "Public key: %s\n", rec.PublicKey)
	fmt.Fprintf(w, "Set by:     %s\n", rec.SetBy.Hex())
	fmt.Fprintf(w, "Set at:     %s\n", rec.SetAt.Format("2006-01-02 15:04:05"))
}

func (a *cli) setCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <token> <name> <public-key>",
		Short: "Append a public key to a slot (requires login)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTokenArg(args[0])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			rec, err := c.SetKey(cmd.Context(), id, args[1], args[2])
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), rec, func(w io.Writer) { printRecord(w, rec) })
		},
	}
}

func (a *cli) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <token> <name> <index>",
		Short: "Read the public key at an index of a slot's history",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTokenArg(args[0])
			if err != nil {
				return err
			}
			index, err := strconv.Atoi(args[2])
			if err != nil || index < 0 {
				return fmt.Errorf("index must be a non-negative integer, got %q", args[2])
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			rec, err := c.GetKey(cmd.Context(), id, args[1], index)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), rec, func(w io.Writer) { printRecord(w, rec) })
		},
	}
}

func (a *cli) latestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "latest <token> <name>",
		Short: "Read the most recent public key of a slot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTokenArg(args[0])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			rec, err := c.GetLatestKey(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), rec, func(w io.Writer) { printRecord(w, rec) })
		},
	}
}

func (a *cli) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <token> <name>",
		Short: "List every public key of a slot, oldest first",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTokenArg(args[0])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			records, err := c.History(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), records, func(out io.Writer) {
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "INDEX\tPUBLIC KEY\tSET BY\tSET AT")
				for _, r := range records {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.Index, r.PublicKey, r.SetBy.Hex(), r.SetAt.Format("2006-01-02 15:04:05"))
				}
				w.Flush()
			})
		},
	}
}

func (a *cli) namesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "names <token>",
		Short: "List the slot names written under a token",
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
			names, err := c.Names(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), names, func(w io.Writer) {
				for _, n := range names {
					fmt.Fprintln(w, n)
				}
			})
		},
	}
}
