package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"quizcoach-backend/internal/config"
	"quizcoach-backend/internal/tools"
	"quizcoach-backend/utilities"
)

var (
	configPath string
	envPath    string

	cfg    *config.APIConfig
	logger *utilities.Logger
)

var rootCmd = &cobra.Command{
	Use:   "quizcoach",
	Short: "Adaptive quiz backend",
	Long: `quizcoach serves multiple-choice questions, grades answers and moves each
learner's proficiency level up or down. It exposes an HTTP API and the same
operations as MCP tools.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadRuntime,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.xml", "path to the XML configuration")
	rootCmd.PersistentFlags().StringVar(&envPath, "env", ".env", "optional dotenv file loaded before the configuration")
	rootCmd.Version = tools.Version

	rootCmd.AddCommand(serveCmd, mcpCmd, seedCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadRuntime reads .env and config.xml, then installs the logger and token
// settings every subcommand relies on.
func loadRuntime(_ *cobra.Command, _ []string) error {
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envPath, err)
	}

	c, err := config.LoadConfig(configPath)
	fromEnv := errors.Is(err, fs.ErrNotExist)
	switch {
	case fromEnv:
		c = config.FromEnv()
	case err != nil:
		return err
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	l, err := utilities.SetupLogging(c.Logging)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	utilities.ConfigureTokens(c.Authentication)

	cfg, logger = c, l
	if fromEnv {
		logger.Warn("config file not found, using defaults and environment", "path", configPath)
	}
	return nil
}

// printStartUpBanner only draws on an interactive terminal.
func printStartUpBanner() {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return
	}
	myFigure := figure.NewFigure("QUIZCOACH", "", true)
	myFigure.Print()

	fmt.Println("======================================================")
	fmt.Printf("QUIZCOACH API (v%s)\n\n", tools.Version)
}
