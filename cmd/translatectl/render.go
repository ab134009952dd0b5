package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/fairyhunter13/ai-translator/internal/domain"
	"github.com/fairyhunter13/ai-translator/internal/usecase"
)

func errorLine(err error) string {
	return color.RedString("✗ ") + err.Error()
}

func (c *cli) json(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func status(on bool) string {
	if on {
		return color.GreenString("● active")
	}
	return color.HiBlackString("○ off")
}

type providerRow struct {
	Provider  domain.ProviderID      `json:"provider"`
	Active    bool                   `json:"active"`
	HasAPIKey bool                   `json:"has_api_key"`
	Current   string                 `json:"current_model"`
	Verified  []domain.VerifiedModel `json:"verified_models"`
}

func (c *cli) providerRow(p domain.ProviderID) providerRow {
	return providerRow{
		Provider:  p,
		Active:    c.svcs.Registry.IsActive(p),
		HasAPIKey: c.svcs.Registry.HasAPIKey(p),
		Current:   c.svcs.Ledger.Current(p),
		Verified:  c.svcs.Ledger.List(p),
	}
}

func renderProviders(w io.Writer, rows []providerRow) {
	fmt.Fprintln(w, color.CyanString("Providers"))
	fmt.Fprintln(w, strings.Repeat("─", 60))
	for _, r := range rows {
		key := color.HiBlackString("no key")
		if r.HasAPIKey {
			key = "key set"
		}
		fmt.Fprintf(w, "%-11s %-18s %-8s %s\n", r.Provider, status(r.Active), key, r.Current)
		for _, m := range r.Verified {
			fmt.Fprintf(w, "    %d. %s\n", m.Order, m.Name)
		}
	}
}

func renderSelection(w io.Writer, sel domain.Selection) {
	follow := func(b bool) string {
		if b {
			return color.HiBlackString("(global)")
		}
		return color.YellowString("(override)")
	}
	fmt.Fprintf(w, "%s %s\n", color.CyanString("scope"), sel.Scope)
	fmt.Fprintf(w, "  provider %s %s\n", sel.Provider, follow(sel.FollowingProvider))
	fmt.Fprintf(w, "  model    %s %s\n", sel.Model, follow(sel.FollowingModel))
}

func renderVerify(w io.Writer, r usecase.VerifyResult) {
	if r.Active {
		fmt.Fprintf(w, "%s %s enabled with %s\n", color.GreenString("✓"), r.Provider, r.Model)
	} else {
		fmt.Fprintf(w, "%s %s not enabled\n", color.RedString("✗"), r.Provider)
	}
	if r.Warning != "" {
		fmt.Fprintf(w, "%s %s\n", color.YellowString("! usage limited:"), r.Warning)
	}
}

func renderModels(w io.Writer, models []usecase.ModelOption) {
	for _, m := range models {
		mark := "  "
		if m.Verified {
			mark = color.GreenString("✓ ")
		}
		line := mark + m.ID
		if m.Name != "" && m.Name != m.ID {
			line += color.HiBlackString(" (" + m.Name + ")")
		}
		fmt.Fprintln(w, line)
	}
}
