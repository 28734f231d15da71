package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/agrade-energy/solarportal/internal/database"
	"github.com/agrade-energy/solarportal/internal/log"
	"github.com/agrade-energy/solarportal/internal/pipeline"
	"github.com/agrade-energy/solarportal/internal/weather"
	"github.com/agrade-energy/solarportal/pkg/config"
)

const version = "1.2-" + runtime.GOOS + "/" + runtime.GOARCH

const defaultConfigPath = "config.yaml"

func main() {
	cfgFile := flag.String("config", defaultConfigPath, "Path to the YAML configuration file. Built-in defaults are used when the default path does not exist.")
	dbPath := flag.String("db", "", "SQLite store path (overrides the configuration)")
	outputDir := flag.String("output", "", "Report output directory (overrides the configuration)")
	source := flag.String("source", "", "Weather source: open-meteo, nasa-power or none (overrides the configuration)")
	reprocess := flag.String("reprocess", "", "Rerun analysis for an existing upload ID instead of ingesting files")
	logFile := flag.String("log-file", "", "Also write logs to this size-rotated file")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("solarportal %s\n", version)
		os.Exit(0)
	}

	if err := log.Init(*debug, *logFile); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := loadConfig(*cfgFile)
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	if err := applyOverrides(cfg, *dbPath, *outputDir, *source); err != nil {
		log.Errorf("Invalid options: %v", err)
		os.Exit(1)
	}

	files := flag.Args()
	if len(files) == 0 && *reprocess == "" {
		fmt.Fprintln(os.Stderr, "nothing to do: pass one or more measurement CSV files, or -reprocess with an upload ID")
		flag.Usage()
		os.Exit(2)
	}

	client := database.NewClient(cfg.Database.Path, log.GetSugaredLogger())
	if err := client.Connect(); err != nil {
		log.Errorf("Failed to open the store at %s: %v", cfg.Database.Path, err)
		os.Exit(1)
	}
	defer client.Close()

	runner := &pipeline.Runner{
		DB:        client,
		Cfg:       cfg,
		Source:    weatherSource(cfg.Analysis.WeatherSource),
		OutputDir: cfg.Output.Dir,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Warnf("received %s, aborting after the current stage", sig)
		cancel()
	}()

	failed := 0

	if *reprocess != "" {
		if err := runner.Reprocess(ctx, *reprocess); err != nil {
			log.Errorf("Reprocess of %s failed: %v", *reprocess, err)
			failed++
		} else {
			log.Infof("reprocessed upload %s, reports in %s", *reprocess, filepath.Join(cfg.Output.Dir, *reprocess))
		}
	}

	for _, file := range files {
		uploadID, err := runner.Run(ctx, file)
		if err != nil {
			log.Errorf("Analysis of %s failed (upload %s): %v", file, uploadID, err)
			failed++
			continue
		}
		log.Infof("analyzed %s as upload %s, reports in %s", file, uploadID, filepath.Join(cfg.Output.Dir, uploadID))
	}

	if failed > 0 {
		os.Exit(1)
	}
}

// loadConfig reads the YAML configuration, falling back to the built-in
// defaults when the default config path simply does not exist.
func loadConfig(cfgFile string) (*config.ConfigData, error) {
	filename, _ := filepath.Abs(cfgFile)

	if _, err := os.Stat(filename); os.IsNotExist(err) && cfgFile == defaultConfigPath {
		log.Debugf("no %s found, using built-in defaults", defaultConfigPath)
		cfg := config.Defaults()
		cfg.Normalize()
		return cfg, cfg.Validate()
	}

	var provider config.ConfigProvider = config.NewYAMLProvider(filename)
	cfg, err := provider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %w", err)
	}
	return cfg, nil
}

// applyOverrides layers command-line options over the loaded configuration
// and revalidates the result.
func applyOverrides(cfg *config.ConfigData, dbPath, outputDir, source string) error {
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if outputDir != "" {
		cfg.Output.Dir = outputDir
	}
	if source != "" {
		cfg.Analysis.WeatherSource = source
	}
	return cfg.Validate()
}

func weatherSource(name string) weather.Source {
	switch name {
	case config.WeatherSourceOpenMeteo:
		return &weather.OpenMeteoSource{}
	case config.WeatherSourceNASAPower:
		return &weather.NASAPowerSource{}
	default:
		return nil
	}
}
