package main

import (
	"github.com/spf13/cobra"

	"github.com/fairyhunter13/ai-translator/internal/domain"
	"github.com/fairyhunter13/ai-translator/internal/service/resolver"
)

func scopeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scope",
		Short: "Show and change provider/model selection per scope",
	}
	show := &cobra.Command{
		Use:   "show [scope]",
		Short: "Resolve the effective provider and model (default: global)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := scopeArg(args)
			if err != nil {
				return err
			}
			sel, err := c.svcs.Resolver.Selection(cmd.Context(), scope)
			if err != nil {
				return err
			}
			return c.printSelection(sel)
		},
	}
	use := &cobra.Command{
		Use:   "use <scope> <provider>",
		Short: "Pin a provider for the scope",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := scopeArg(args[:1])
			if err != nil {
				return err
			}
			p, err := domain.ParseProviderID(args[1])
			if err != nil {
				return err
			}
			if err := c.svcs.Resolver.SelectProvider(cmd.Context(), scope, p); err != nil {
				return err
			}
			sel, err := c.svcs.Resolver.Selection(cmd.Context(), scope)
			if err != nil {
				return err
			}
			return c.printSelection(sel)
		},
	}
	model := &cobra.Command{
		Use:   "model <scope> <provider> <model>",
		Short: "Pin a model for one provider in the scope",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := scopeArg(args[:1])
			if err != nil {
				return err
			}
			p, err := domain.ParseProviderID(args[1])
			if err != nil {
				return err
			}
			return c.svcs.Resolver.SelectModel(cmd.Context(), scope, p, args[2])
		},
	}
	reset := &cobra.Command{
		Use:   "reset <scope>",
		Short: "Drop the scope's overrides and follow global again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := scopeArg(args)
			if err != nil {
				return err
			}
			sel, err := c.svcs.Resolver.ResetToGlobal(cmd.Context(), scope)
			if err != nil {
				return err
			}
			return c.printSelection(sel)
		},
	}
	cmd.AddCommand(show, use, model, reset)
	return cmd
}

func scopeArg(args []string) (domain.Scope, error) {
	if len(args) == 0 {
		return domain.GlobalScope, nil
	}
	return resolver.ParseScope(args[0])
}

func (c *cli) printSelection(sel domain.Selection) error {
	if c.asJSON {
		return c.json(sel)
	}
	renderSelection(c.out, sel)
	return nil
}
