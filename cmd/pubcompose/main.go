package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eringen/pubcompose"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	cfgFile string
	logger  *log.Logger
	rootCmd = &cobra.Command{
		Use:   "pubcompose",
		Short: "Compose blog posts with generated text, translations and images",
		Long: `pubcompose serves a composer for a blog network. Writers fill in a title,
blog, category and description, let the remote models write, translate and
illustrate the post, and submit it to the posts API.`,
		PersistentPreRunE: initConfig,
		SilenceUsage:      true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./pubcompose.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("db", "data/pubcompose.db", "sqlite database path")

	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(cropCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home + "/.config/pubcompose")
		}
		viper.SetConfigName("pubcompose")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PUBCOMPOSE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	l, err := pubcompose.NewLogger(os.Stderr, viper.GetString("logging.level"))
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	logger = l
	if f := viper.ConfigFileUsed(); f != "" {
		logger.Debug("config loaded", "file", f)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("site.name", "Compose")
	viper.SetDefault("site.addr", ":3000")
	viper.SetDefault("site.url", "http://localhost:3000")
	viper.SetDefault("api.url", "http://localhost:5000")
	viper.SetDefault("api.timeout", 2*time.Minute)
	viper.SetDefault("session.cookie_secure", false)
	viper.SetDefault("catalog.ttl", 5*time.Minute)
	viper.SetDefault("draft.idle_ttl", 12*time.Hour)
	viper.SetDefault("limits.actions", 30)
	viper.SetDefault("limits.window", time.Minute)
	viper.SetDefault("limits.upload_mb", 10)
}

// siteConfig maps the loaded settings onto the server configuration.
func siteConfig() pubcompose.SiteConfig {
	return pubcompose.SiteConfig{
		Name:                  viper.GetString("site.name"),
		Addr:                  viper.GetString("site.addr"),
		URL:                   viper.GetString("site.url"),
		DatabasePath:          viper.GetString("database.path"),
		APIURL:                viper.GetString("api.url"),
		APITimeout:            viper.GetDuration("api.timeout"),
		AccessPassword:        viper.GetString("access.password"),
		SessionSecret:         viper.GetString("session.secret"),
		CookieSecure:          viper.GetBool("session.cookie_secure"),
		CatalogTTL:            viper.GetDuration("catalog.ttl"),
		DraftIdleTTL:          viper.GetDuration("draft.idle_ttl"),
		ActionLimit:           viper.GetInt("limits.actions"),
		ActionWindow:          viper.GetDuration("limits.window"),
		Placeholder:           viper.GetString("placeholder.initial"),
		TranslatedPlaceholder: viper.GetString("placeholder.translated"),
		MaxUploadSize:         viper.GetInt64("limits.upload_mb") << 20,
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the pubcompose version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pubcompose %s\n", version)
		},
	}
}
