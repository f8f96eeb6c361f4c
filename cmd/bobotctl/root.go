package main

import (
	"context"
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bobotlabs/bobot/pkg/widget"
)

var (
	apiBaseURL   string
	companyID    string
	widgetKey    string
	stateDir     string
	languageCode string
	darkMode     bool
	verbose      bool
)

var errMissingCompanyFlag = errors.New("--company is required")

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bobotctl",
	Short: "Talk to a Bobot chat backend from the terminal",
	Long: `bobotctl drives a Bobot chat widget session from the command line.

It speaks the same protocol the embedded web widget does: the conversation is
persisted locally between runs, consent is honored when the tenant requires it,
and the GDPR self-service actions are available as subcommands.

Quick Start:
  bobotctl chat --company acme                 # Interactive conversation
  bobotctl export --company acme --format md   # Export the saved transcript
  bobotctl gdpr view --company acme            # Show stored personal data`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "api-url", "http://localhost:8080", "Base URL of the Bobot backend")
	rootCmd.PersistentFlags().StringVar(&companyID, "company", "", "Tenant company identifier")
	rootCmd.PersistentFlags().StringVar(&widgetKey, "widget-key", "", "Opaque widget key, used instead of the company id when set")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "Directory for persisted conversation state")
	rootCmd.PersistentFlags().StringVar(&languageCode, "lang", "en", "Interface language (sv, en, ar)")
	rootCmd.PersistentFlags().BoolVar(&darkMode, "dark", false, "Use the dark color palette")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

// openWidget builds a bootstrapped widget handle from the persistent flags.
func openWidget(ctx context.Context) (*widget.Widget, error) {
	if strings.TrimSpace(companyID) == "" {
		return nil, errMissingCompanyFlag
	}

	logger := zap.NewNop()
	if verbose {
		developmentLogger, loggerErr := zap.NewDevelopment()
		if loggerErr == nil {
			logger = developmentLogger
		}
	}

	handle, newErr := widget.New(widget.Options{
		APIBaseURL: apiBaseURL,
		CompanyID:  companyID,
		WidgetKey:  widgetKey,
		StateDir:   stateDir,
		Language:   languageCode,
		DarkMode:   darkMode,
		Logger:     logger,
	})
	if newErr != nil {
		return nil, newErr
	}

	handle.Bootstrap(ctx)
	return handle, nil
}
