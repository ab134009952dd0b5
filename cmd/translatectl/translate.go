package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fairyhunter13/ai-translator/internal/domain"
)

func translateCmd(c *cli) *cobra.Command {
	var (
		scope string
		from  string
		to    string
		model string
	)
	cmd := &cobra.Command{
		Use:   "translate [text]",
		Short: "Translate text with the scope's provider; reads stdin when no text is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := ""
			if len(args) == 1 {
				text = args[0]
			} else {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = strings.TrimSpace(string(b))
			}
			sc, err := scopeArg([]string{scope})
			if err != nil {
				return err
			}
			res, err := c.svcs.Translator.Translate(cmd.Context(), sc, domain.TranslationRequest{
				Text:          text,
				FromLanguage:  from,
				ToLanguage:    to,
				ModelOverride: model,
			})
			if c.asJSON {
				if jerr := c.json(res); jerr != nil {
					return jerr
				}
				return err
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, res.TranslatedText)
			if res.ProviderInfo != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), color.HiBlackString("via %s / %s", res.ProviderInfo.Provider, res.ProviderInfo.Model))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&scope, "scope", "s", string(domain.GlobalScope), "selection scope")
	cmd.Flags().StringVarP(&from, "from", "f", "auto-detect", "source language")
	cmd.Flags().StringVarP(&to, "to", "t", "English", "target language")
	cmd.Flags().StringVarP(&model, "model", "m", "", "model override")
	return cmd
}
