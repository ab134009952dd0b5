package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/ai-translator/internal/domain"
)

func providersCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "providers",
		Aliases: []string{"p"},
		Short:   "List providers with activation and verified models",
		Args:    cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			rows := make([]providerRow, 0, len(domain.AllProviders()))
			for _, p := range domain.AllProviders() {
				rows = append(rows, c.providerRow(p))
			}
			if c.asJSON {
				return c.json(rows)
			}
			renderProviders(c.out, rows)
			return nil
		},
	}
	cmd.AddCommand(
		toggleCmd(c, "enable", true),
		toggleCmd(c, "disable", false),
	)
	return cmd
}

func toggleCmd(c *cli, use string, on bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <provider>",
		Short: fmt.Sprintf("%s a provider", use),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := domain.ParseProviderID(args[0])
			if err != nil {
				return err
			}
			if err := c.svcs.Registry.Toggle(cmd.Context(), p, on); err != nil {
				return err
			}
			if c.asJSON {
				return c.json(c.providerRow(p))
			}
			fmt.Fprintf(c.out, "%s %s\n", p, status(on))
			return nil
		},
	}
}

func keyCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Verify or remove provider API keys",
	}
	var model string
	verify := &cobra.Command{
		Use:   "verify <provider> <api-key>",
		Short: "Probe the provider with a key and enable it when the key works",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := domain.ParseProviderID(args[0])
			if err != nil {
				return err
			}
			res, err := c.svcs.Translator.VerifyKey(cmd.Context(), p, args[1], model)
			if c.asJSON {
				if jerr := c.json(res); jerr != nil {
					return jerr
				}
			} else if res.Provider != "" {
				renderVerify(c.out, res)
			}
			return err
		},
	}
	verify.Flags().StringVarP(&model, "model", "m", "", "model to probe (default: provider default)")

	clearKey := &cobra.Command{
		Use:   "clear <provider>",
		Short: "Remove the key, disable the provider and forget its verified models",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := domain.ParseProviderID(args[0])
			if err != nil {
				return err
			}
			if err := c.svcs.Translator.ClearKey(cmd.Context(), p); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%s key removed\n", p)
			return nil
		},
	}
	cmd.AddCommand(verify, clearKey)
	return cmd
}
