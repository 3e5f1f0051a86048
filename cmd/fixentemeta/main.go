package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// args holds the command-line arguments
var args struct {
	RootDir         string `arg:"positional" help:"Directory to scan (default: ~/Downloads/ente_photos)"`
	ConfigFile      string `arg:"--config" help:"Path to config file"`
	Verbose         bool   `arg:"-v,--verbose" help:"Enable verbose output"`
	DryRun          bool   `arg:"--dry-run" help:"Report what would change without writing any file"`
	AllDates        bool   `arg:"--all-dates" help:"Also set DateTimeDigitized and DateTime on images"`
	FFmpegPath      string `arg:"--ffmpeg" help:"Path to the ffmpeg binary"`
	ExiftoolPath    string `arg:"--exiftool" help:"Path to the exiftool binary"`
	DisableExiftool bool   `arg:"--no-exiftool" help:"Only write JPEG images natively; skip exiftool for other formats"`
	ReportFile      string `arg:"--report" help:"Write a JSON report to this path"`
}

// config holds the application configuration
type config struct {
	RootDir         string `yaml:"root_directory"`
	ConfigFile      string `yaml:"-"`
	Verbose         bool   `yaml:"verbose"`
	DryRun          bool   `yaml:"dry_run"`
	AllDates        bool   `yaml:"all_dates"`
	FFmpegPath      string `yaml:"ffmpeg_path"`
	ExiftoolPath    string `yaml:"exiftool_path"`
	DisableExiftool bool   `yaml:"disable_exiftool"`
	ReportFile      string `yaml:"report_file"`
}

// setDefaults initializes the config with default values
func setDefaults(cfg *config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get user home directory: %v", err)
	}

	cfg.RootDir = filepath.Join(homeDir, "Downloads", "ente_photos")
	cfg.ConfigFile = filepath.Join(homeDir, ".fixentemetarc")
	cfg.Verbose = false
	cfg.DryRun = false
	cfg.AllDates = false
	cfg.FFmpegPath = "ffmpeg"
	cfg.ExiftoolPath = "exiftool"
	cfg.DisableExiftool = false
	cfg.ReportFile = ""
	return nil
}

// parseConfigFile reads and parses the YAML configuration file
func parseConfigFile(cfg *config) error {
	data, err := os.ReadFile(cfg.ConfigFile)
	if err != nil {
		if os.IsNotExist(err) {
			// Config file doesn't exist, just return without an error
			return nil
		}
		return fmt.Errorf("failed to read config file: %v", err)
	}

	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return fmt.Errorf("failed to parse config file: %v", err)
	}

	return nil
}

// validateConfig checks if the configuration is valid
func validateConfig(cfg *config) error {
	if cfg.RootDir == "" {
		return fmt.Errorf("root directory is not specified")
	}

	if cfg.FFmpegPath == "" {
		return fmt.Errorf("ffmpeg path is empty")
	}

	if !cfg.DisableExiftool && cfg.ExiftoolPath == "" {
		return fmt.Errorf("exiftool path is empty")
	}

	if cfg.ReportFile != "" {
		reportParent := filepath.Dir(cfg.ReportFile)
		if _, err := os.Stat(reportParent); os.IsNotExist(err) {
			return fmt.Errorf("report directory does not exist: %s", reportParent)
		}
	}

	return nil
}

// wasFlagProvided checks if a CLI flag was explicitly provided
func wasFlagProvided(flagName string) bool {
	for _, a := range os.Args[1:] {
		if a == flagName || strings.HasPrefix(a, flagName+"=") {
			return true
		}
	}
	return false
}

// newLogger returns a console logger; debug output only when verbose.
func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}).
		Level(level).
		With().Timestamp().Logger()
}

// checkExternalTools warns about helper binaries that cannot be found. Files
// that need them will fail individually.
func checkExternalTools(cfg config, log zerolog.Logger) {
	if _, err := exec.LookPath(cfg.FFmpegPath); err != nil {
		log.Warn().Str("ffmpeg", cfg.FFmpegPath).Msg("ffmpeg not found; videos will fail to update")
	}
	if !cfg.DisableExiftool {
		if _, err := exec.LookPath(cfg.ExiftoolPath); err != nil {
			log.Warn().Str("exiftool", cfg.ExiftoolPath).Msg("exiftool not found; only JPEG images can be updated")
		}
	}
}

// writeReport stores the run report as indented JSON.
func writeReport(path string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// loadConfig applies defaults, then the config file, then explicit flags.
func loadConfig() (config, error) {
	cfg := config{}

	// Set default values first
	if err := setDefaults(&cfg); err != nil {
		return cfg, fmt.Errorf("setting defaults: %w", err)
	}

	// Parse command-line arguments
	arg.MustParse(&args)

	// Apply config file path from command-line argument if provided
	if args.ConfigFile != "" {
		cfg.ConfigFile = args.ConfigFile
	}

	// Parse configuration file
	if err := parseConfigFile(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	// Override with command-line arguments
	if args.RootDir != "" {
		cfg.RootDir = args.RootDir
	}
	if wasFlagProvided("-v") || wasFlagProvided("--verbose") {
		cfg.Verbose = args.Verbose
	}
	if wasFlagProvided("--dry-run") {
		cfg.DryRun = args.DryRun
	}
	if wasFlagProvided("--all-dates") {
		cfg.AllDates = args.AllDates
	}
	if args.FFmpegPath != "" {
		cfg.FFmpegPath = args.FFmpegPath
	}
	if args.ExiftoolPath != "" {
		cfg.ExiftoolPath = args.ExiftoolPath
	}
	if wasFlagProvided("--no-exiftool") {
		cfg.DisableExiftool = args.DisableExiftool
	}
	if args.ReportFile != "" {
		cfg.ReportFile = args.ReportFile
	}

	cfg.RootDir = expandHome(cfg.RootDir)
	cfg.ReportFile = expandHome(cfg.ReportFile)

	// Validate the configuration
	if err := validateConfig(&cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// expandHome resolves a leading "~/" against the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := newLogger(os.Stderr, cfg.Verbose)
	checkExternalTools(cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p := newProcessor(cfg, log)
	defer func() {
		if err := p.Close(); err != nil {
			log.Warn().Err(err).Msg("Closing exiftool")
		}
	}()

	start := time.Now()
	report, err := p.run(ctx, cfg.RootDir)
	if report != nil {
		printSummary(report)
		if cfg.ReportFile != "" {
			if werr := writeReport(cfg.ReportFile, report); werr != nil {
				log.Error().Err(werr).Str("report", cfg.ReportFile).Msg("Could not write report")
			}
		}
	}
	if err != nil {
		return err
	}

	log.Info().Dur("elapsed", time.Since(start).Round(time.Millisecond)).Msg("Done")
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
