// Package main provides the pinpoint command: it opens a page in a
// browser, resolves a natural-language element description to a clickable
// coordinate, and clicks it. Learned templates are cached on disk so
// repeat runs skip the vision model entirely.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/entrhq/pinpoint/pkg/config"
	"github.com/entrhq/pinpoint/pkg/element"
	"github.com/entrhq/pinpoint/pkg/logging"
	"github.com/entrhq/pinpoint/pkg/screen"
	"github.com/entrhq/pinpoint/pkg/store"
	"github.com/entrhq/pinpoint/pkg/vision"
)

const version = "0.1.0"

type cliFlags struct {
	configFile    string
	url           string
	click         string
	cacheRoot     string
	minScore      float64
	timeout       time.Duration
	model         string
	baseURL       string
	headed        bool
	list          bool
	invalidate    string
	invalidateAll bool
	vacuum        bool
	showVersion   bool
}

func main() {
	flags := parseFlags()
	if flags.showVersion {
		fmt.Printf("pinpoint v%s\n", version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nshutting down...")
		cancel()
	}()

	if err := run(ctx, flags); err != nil {
		fmt.Fprintf(os.Stderr, "pinpoint: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() *cliFlags {
	flags := &cliFlags{}
	flag.StringVar(&flags.configFile, "config", "", "path to YAML config file (default ~/.pinpoint/config.yaml)")
	flag.StringVar(&flags.url, "url", "", "page to open before resolving")
	flag.StringVar(&flags.click, "click", "", "element description to resolve and click")
	flag.StringVar(&flags.cacheRoot, "cache", "", "override the template cache directory")
	flag.Float64Var(&flags.minScore, "score", -1, "override min match score in [0,1]")
	flag.DurationVar(&flags.timeout, "timeout", 0, "override the estimator timeout")
	flag.StringVar(&flags.model, "model", "", "override the vision model")
	flag.StringVar(&flags.baseURL, "base-url", "", "OpenAI-compatible API base URL")
	flag.BoolVar(&flags.headed, "headed", false, "run the browser with a visible window")
	flag.BoolVar(&flags.list, "list", false, "list learned elements and exit")
	flag.StringVar(&flags.invalidate, "invalidate", "", "remove the cached template for a description and exit")
	flag.BoolVar(&flags.invalidateAll, "invalidate-all", false, "remove all cached templates and exit")
	flag.BoolVar(&flags.vacuum, "vacuum", false, "remove orphaned template artifacts and exit")
	flag.BoolVar(&flags.showVersion, "version", false, "print version and exit")
	flag.Parse()
	return flags
}

func run(ctx context.Context, flags *cliFlags) error {
	// .env is a convenience for OPENAI_API_KEY; its absence is fine.
	_ = godotenv.Load()

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	fileStore, err := store.NewFileStore(cfg.CacheRoot)
	if err != nil {
		return err
	}

	if done, err := runMaintenance(ctx, flags, fileStore); done {
		return err
	}

	if flags.click == "" {
		return fmt.Errorf("nothing to do: pass -click (or -list, -invalidate, -invalidate-all, -vacuum)")
	}

	logger, logErr := logging.NewLogger("cli")
	if logErr != nil {
		logger.Warn("session log unavailable, logging to stderr", "err", logErr)
	}
	defer logging.Close()

	var providerOpts []vision.ProviderOption
	if cfg.Model != "" {
		providerOpts = append(providerOpts, vision.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		providerOpts = append(providerOpts, vision.WithBaseURL(cfg.BaseURL))
	}
	estimator, err := vision.NewProvider("", providerOpts...)
	if err != nil {
		return err
	}

	resolver, err := element.NewResolver(fileStore, estimator,
		element.WithMinMatchScore(cfg.MinMatchScore),
		element.WithEstimatorTimeout(time.Duration(cfg.EstimatorTimeout)),
		element.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	session, err := screen.NewSession(screen.SessionOptions{Headless: !flags.headed})
	if err != nil {
		return err
	}
	defer session.Close()

	if flags.url != "" {
		if err := session.Navigate(flags.url); err != nil {
			return err
		}
	}

	img, err := session.Capture()
	if err != nil {
		return err
	}

	res, err := resolver.Resolve(ctx, flags.click, img)
	if err != nil {
		return err
	}
	if err := session.Click(res.Point); err != nil {
		return err
	}

	switch res.Path {
	case element.PathCached:
		fmt.Printf("clicked %q at (%d,%d) via cached template (score %.3f)\n",
			flags.click, res.Point.X, res.Point.Y, res.Score)
	default:
		fmt.Printf("clicked %q at (%d,%d) via fresh learn (confidence %s)\n",
			flags.click, res.Point.X, res.Point.Y, res.Confidence)
	}
	return nil
}

// loadConfig reads the config file and applies flag overrides on top.
func loadConfig(flags *cliFlags) (config.Config, error) {
	path := flags.configFile
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home + "/.pinpoint/config.yaml"
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if flags.cacheRoot != "" {
		cfg.CacheRoot = flags.cacheRoot
	}
	if flags.minScore >= 0 {
		cfg.MinMatchScore = flags.minScore
	}
	if flags.timeout > 0 {
		cfg.EstimatorTimeout = config.Duration(flags.timeout)
	}
	if flags.model != "" {
		cfg.Model = flags.model
	}
	if flags.baseURL != "" {
		cfg.BaseURL = flags.baseURL
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// runMaintenance handles the cache housekeeping modes that need no browser
// or vision model. It reports whether it handled the invocation.
func runMaintenance(ctx context.Context, flags *cliFlags, fileStore *store.FileStore) (bool, error) {
	switch {
	case flags.list:
		keys, err := fileStore.List(ctx)
		if err != nil {
			return true, err
		}
		if len(keys) == 0 {
			fmt.Println("no learned elements")
			return true, nil
		}
		for _, key := range keys {
			fmt.Println(key)
		}
		return true, nil

	case flags.invalidate != "":
		key := store.NormalizeKey(flags.invalidate)
		if err := fileStore.Delete(ctx, key); err != nil {
			return true, err
		}
		fmt.Printf("invalidated %q\n", key)
		return true, nil

	case flags.invalidateAll:
		if err := fileStore.Clear(ctx); err != nil {
			return true, err
		}
		fmt.Println("cache cleared")
		return true, nil

	case flags.vacuum:
		removed, err := fileStore.Vacuum(ctx)
		if err != nil {
			return true, err
		}
		fmt.Printf("removed %d orphaned artifact(s)\n", removed)
		return true, nil
	}
	return false, nil
}
