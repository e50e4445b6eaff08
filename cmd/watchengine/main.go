package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/justchokingaround/watchengine/internal/config"
	"github.com/justchokingaround/watchengine/internal/database"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	logLevel  string
	noColor   bool
	debugMode bool
	dubFlag   bool
	subFlag   bool

	// Global config, logger and engine
	cfg    *config.Config
	logger *slog.Logger
	eng    engineHolder
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "watchengine",
	Short: "Resolve, play and track episodes from several stream providers",
	Long: `watchengine resolves episodes through interchangeable stream providers,
plays them in mpv with resume and seamless next-episode navigation, and keeps
a local watch history.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// config init and path work without a loaded config
		if cmd.Parent() != nil && cmd.Parent().Name() == "config" && cmd.Name() != "show" {
			return nil
		}
		if cmd.Name() == "version" {
			return nil
		}

		if err := config.InitializeDirs(); err != nil {
			return fmt.Errorf("failed to initialize directories: %w", err)
		}

		var (
			v   *viper.Viper
			err error
		)
		cfg, v, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		applyFlagOverrides(cfg)

		logger, err = config.InitLogger(&cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := database.Init(&cfg.Database); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}

		eng.Store(newEngine(cfg, database.DB, logger))
		settings = v

		// Hot reload: running sessions keep their engine, new ones pick up the change
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			logger.Info("config file changed", "name", e.Name)
			var reloaded config.Config
			if err := v.Unmarshal(&reloaded); err != nil {
				logger.Error("failed to reload config", "error", err)
				return
			}
			if err := reloaded.Validate(); err != nil {
				logger.Error("ignoring invalid config", "error", err)
				return
			}
			applyFlagOverrides(&reloaded)
			eng.Store(newEngine(&reloaded, database.DB, logger))
			logger.Info("providers reloaded", "default", reloaded.Providers.Default)
		})

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if err := database.Close(); err != nil && logger != nil {
			logger.Error("failed to close database", "error", err)
		}
	},
}

// settings is the viper instance behind cfg
var settings *viper.Viper

func applyFlagOverrides(c *config.Config) {
	if debugMode {
		c.Advanced.Debug = true
		if logLevel == "" {
			c.Logging.Level = "debug"
		}
	}
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if noColor {
		c.Logging.Color = false
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/watchengine/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug mode (verbose HTTP logging)")
	rootCmd.PersistentFlags().BoolVar(&dubFlag, "dub", false, "use dubbed audio (overrides the remembered language)")
	rootCmd.PersistentFlags().BoolVar(&subFlag, "sub", false, "use subbed audio (overrides the remembered language)")
	rootCmd.MarkFlagsMutuallyExclusive("dub", "sub")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(qualitiesCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(providersCmd)
}

// versionCmd displays version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("watchengine version %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
	},
}

// configCmd handles configuration operations
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.DefaultPath()
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("Default configuration generated at: %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := config.MarshalSettings(settings)
		if err != nil {
			return err
		}
		if used := settings.ConfigFileUsed(); used != "" {
			fmt.Printf("# %s\n", used)
		}
		fmt.Print(string(data))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Display configuration file path",
	Run: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			fmt.Println(cfgFile)
			return
		}
		fmt.Println(config.DefaultPath())
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
}
