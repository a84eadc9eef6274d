package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/reelforge/reelforge/internal/cli"
	"github.com/reelforge/reelforge/internal/config"
	"github.com/reelforge/reelforge/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Build-time version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// A missing .env is fine; real deployments configure via file or env.
	_ = godotenv.Load()

	versionInfo := cli.VersionInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	}

	rootCmd := cli.NewRootCommand(runServer, versionInfo)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads configuration from file and environment variables.
func loadConfig(configFile string) (*config.Config, error) {
	viper.SetEnvPrefix("REELFORGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	// Short-form overrides kept for deployments that predate the nested keys.
	_ = viper.BindEnv("server.port", "REELFORGE_PORT")
	_ = viper.BindEnv("storage.local.database_path", "REELFORGE_DATABASE_PATH")

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		viper.SetConfigName("reelforge")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				fmt.Println("No config file found, using environment variables and defaults.")
			} else {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// runServer contains the server startup logic called by the Cobra command.
func runServer(cmd *cobra.Command, args []string) {
	fmt.Println("Reelforge server starting...")

	cfgFilePath, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(cfgFilePath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cmd.Flags().Lookup("port").Changed {
		port, _ := cmd.Flags().GetInt("port")
		cfg.Server.Port = port
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
