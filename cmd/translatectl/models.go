package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/ai-translator/internal/domain"
)

func modelsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect the provider catalog and manage verified models",
	}
	var key string
	list := &cobra.Command{
		Use:   "list <provider>",
		Short: "List models offered by the provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := domain.ParseProviderID(args[0])
			if err != nil {
				return err
			}
			models, err := c.svcs.Catalog.ListModels(cmd.Context(), p, key)
			if err != nil {
				return err
			}
			if c.asJSON {
				return c.json(models)
			}
			renderModels(c.out, models)
			return nil
		},
	}
	list.Flags().StringVar(&key, "key", "", "candidate API key (default: stored key)")

	add := &cobra.Command{
		Use:   "add <provider> <model>",
		Short: "Add a verified model at the top of the list",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := domain.ParseProviderID(args[0])
			if err != nil {
				return err
			}
			if err := c.svcs.Ledger.Add(cmd.Context(), p, args[1]); err != nil {
				return err
			}
			return c.printLedger(p)
		},
	}
	move := &cobra.Command{
		Use:   "move <provider> <from> <to>",
		Short: "Reorder a verified model",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := domain.ParseProviderID(args[0])
			if err != nil {
				return err
			}
			from, to, err := twoInts(args[1], args[2])
			if err != nil {
				return err
			}
			if err := c.svcs.Ledger.Reorder(cmd.Context(), p, from, to); err != nil {
				return err
			}
			return c.printLedger(p)
		},
	}
	rm := &cobra.Command{
		Use:   "rm <provider> <index>",
		Short: "Remove a verified model by index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := domain.ParseProviderID(args[0])
			if err != nil {
				return err
			}
			idx, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("%w: index %q", domain.ErrInvalidArgument, args[1])
			}
			if err := c.svcs.Ledger.Remove(cmd.Context(), p, idx); err != nil {
				return err
			}
			return c.printLedger(p)
		},
	}
	cmd.AddCommand(list, add, move, rm)
	return cmd
}

func twoInts(a, b string) (int, int, error) {
	x, err := strconv.Atoi(a)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: index %q", domain.ErrInvalidArgument, a)
	}
	y, err := strconv.Atoi(b)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: index %q", domain.ErrInvalidArgument, b)
	}
	return x, y, nil
}

func (c *cli) printLedger(p domain.ProviderID) error {
	row := c.providerRow(p)
	if c.asJSON {
		return c.json(row)
	}
	renderProviders(c.out, []providerRow{row})
	return nil
}
