package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/emanueleielo/parrotgate/internal/config"
)

// onboardCmd interactively builds a starter config.yaml with huh forms.
func onboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "onboard",
		Short: "Interactively generate a starter config.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnboard()
		},
	}
}

func runOnboard() error {
	cfg := config.Default()

	var (
		providerName string
		apiKey       string
		model        string
		telegramTok  string
		enableTG     bool
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("LLM provider name").
				Description("e.g. openai, groq, openrouter").
				Value(&providerName),
			huh.NewInput().
				Title("Model").
				Value(&model),
			huh.NewInput().
				Title("API key").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable the Telegram channel?").
				Value(&enableTG),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Telegram bot token").
				EchoMode(huh.EchoModePassword).
				Value(&telegramTok),
		).WithHideFunc(func() bool { return !enableTG }),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("onboard: %w", err)
	}

	cfg.Provider.Name = providerName
	cfg.Provider.Model = model
	cfg.Provider.APIKey = apiKey
	if enableTG {
		cfg.Channels.Telegram.Enabled = true
		cfg.Channels.Telegram.Token = telegramTok
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("onboard: encoding config: %w", err)
	}

	path := resolveConfigPath()
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("onboard: writing %s: %w", path, err)
	}

	fmt.Printf("Wrote %s. Run `parrotgate run` to start.\n", path)
	return nil
}
