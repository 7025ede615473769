// Copyright 2026 The LexiDict Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main implements the dictionary server and CLI [DBG] application.

Note: This is a BETA release. APIs and functionality may rapidly change.

LexiDict provides mutable on-disk trie dictionaries with typo-tolerant,
context-aware word suggestions. It can operate as a MessagePack IPC server
for integration with text editors and input methods, or as a CLI application
for testing and debugging.

The server manages one dictionary group per locale. Every dictionary is a
single binary trie file that is read, searched and updated in place; words
the user types are learned into the history dictionaries and decay over
time when they stop being used.

# Usage

Start the server with default settings:

	lexidict

Use a custom data directory and enable debug mode:

	lexidict -data /path/to/dicts -d

Run in CLI mode for interactive testing:

	lexidict -c -limit 10 -prmin 2

The data directory holds one subdirectory per locale (for example data/en/)
with one binary dictionary file per member type inside it. Missing files
are created empty on first use; main dictionaries are built offline with
the dictool command.

# Configuration

Runtime configuration is managed through a TOML file covering server
parameters, dictionary settings and ranking costs:

	[server]
	max_limit = 64
	min_prefix = 1
	max_prefix = 60
	enable_filter = true

	[dict]
	data_dir = ""
	query_timeout_ms = 100
	history_capacity = 64

The config file is automatically created with defaults if it doesn't exist.

# IPC Protocol

The server communicates via MessagePack over stdin/stdout. Requests carry an
op field selecting the operation; suggestion responses include microsecond
timing information.

Send a suggestion request:

	{"id": "req1", "op": "suggest", "p": "hel", "ctx": ["say"], "l": 20}

Receive suggestions ranked best-first:

	{"id": "req1", "s": [{"w": "hello", "r": 1}, {"w": "help", "r": 2}], "c": 2, "t": 145}

Learning requests feed the history dictionaries:

	{"id": "l1", "op": "learn", "w": "hello", "ctx": ["say"]}
	{"id": "u1", "op": "unlearn", "w": "helko"}

# Server Mode

The default mode starts a MessagePack IPC server that processes requests
from stdin and writes responses to stdout. This design enables integration
with editors and other applications through process communication.

	srv := server.NewServer(facilitator, cfg)
	err := srv.Start()

Queries fan out over the loaded dictionary group and merge results; a
dictionary busy with a large maintenance task is skipped after a bounded
wait rather than blocking the response.

# CLI Mode

CLI mode provides an interactive interface for testing and debugging. It
reads input lines from stdin and displays suggestions with their scores;
earlier words on the line become the context for next-word prediction, and
`+word` / `-word` learn or forget a word.

	inputHandler := cli.NewInputHandler(facilitator, minLen, maxLen, limit, noFilter)
	err := inputHandler.Start()

This mode is primarily intended for development and testing new features
before deploying to server mode.

# Command Line Flags

The following flags control application behavior:

	-data string
	    Directory containing the dictionary files (default from config)
	-locale string
	    Locale of the dictionary group to load (default "en")
	-d  Enable debug mode with detailed logging
	-c  Run in CLI mode instead of server mode
	-limit int
	    Number of suggestions to return (default from config)
	-prmin int
	    Minimum prefix length for suggestions
	-prmax int
	    Maximum prefix length for suggestions
	-no-filter
	    Disable input filtering for debugging
	-config string
	    Path to a custom config file
*/
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bastiangx/lexidict/internal/cli"
	"github.com/bastiangx/lexidict/pkg/config"
	"github.com/bastiangx/lexidict/pkg/dict"
	"github.com/bastiangx/lexidict/pkg/server"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

const (
	Version = "0.4.0-beta"
	AppName = "lexidict"
	gh      = "https://github.com/bastiangx/lexidict"
)

// sigHandler is a simple handler for OS signals to exit normally.
func sigHandler(cleanup func()) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Fprintf(os.Stderr, "\nExiting...\n")
		cleanup()
		os.Exit(0)
	}()
}

// main calls other packages to initialize the server or CLI inputs.
// main() does not implement logic for them and only manages the flow.
func main() {
	defaultConfig := config.DefaultConfig()

	// custom Flags
	showVersion := flag.Bool("version", false, "Show current version")
	dataDir := flag.String("data", "", "Directory containing the dictionary files")
	locale := flag.String("locale", "en", "Locale of the dictionary group to load")
	debugMode := flag.Bool("d", false, "Toggle debug mode")
	cliMode := flag.Bool("c", false, "Run CLI -- useful for testing and debugging")
	limit := flag.Int("limit", defaultConfig.Server.MaxLimit, "Number of suggestions to return")
	minPrefix := flag.Int("prmin", defaultConfig.Server.MinPrefix, "Minimum prefix length for suggestions (1 < n <= prmax)")
	maxPrefix := flag.Int("prmax", defaultConfig.Server.MaxPrefix, "Maximum prefix length for suggestions")
	noFilter := flag.Bool("no-filter", !defaultConfig.Server.EnableFilter, "Disable input filtering (DBG only) - shows all raw dictionary entries (numbers, symbols, etc)")
	configPath := flag.String("config", "", "Path to a custom config file")

	flag.Parse()

	if *showVersion {
		logger := log.NewWithOptions(os.Stderr, log.Options{
			ReportCaller:    false,
			ReportTimestamp: false,
			Prefix:          "",
		})

		styles := log.DefaultStyles()

		styles.Values["version"] = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
		styles.Values["version"] = lipgloss.NewStyle().
			Background(lipgloss.AdaptiveColor{Light: "#f2e9e1", Dark: "#26233a"})

		styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})

		logger.SetStyles(styles)

		logger.Print("")
		logger.Print("[ LexiDict ] Mutable dictionaries with really fast suggestions!")
		logger.Print("", "version", Version)
		logger.Print("")
		logger.Print("use -h or --help to see available options")
		logger.Print("Github Repo", "gh", gh)

		os.Exit(0)
	}

	if *debugMode {
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
	} else {
		log.SetLevel(log.WarnLevel)
	}

	appConfig, activePath, err := config.LoadConfigWithPriority(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if activePath != "" {
		log.Debugf("Using config file: (%s)", activePath)
	}

	opts := appConfig.FacilitatorOptions()
	if *dataDir != "" {
		opts.DataDir = *dataDir
	}
	log.Debugf("Using data dir at: %s", opts.DataDir)

	facilitator, err := dict.NewFacilitator(opts)
	if err != nil {
		log.Fatalf("Failed to init facilitator: %v", err)
	}
	sigHandler(facilitator.Close)

	facilitator.ResetDictionaries(*locale, dict.AllTypes)
	log.Debugf("Dictionary group loaded for locale [%s]", *locale)

	// CLI would be mainly used for testing and dbg purposes.
	// Any new features or changes should be tested in CLI mode first.
	// NOTE: Server interface has vastly different parameters compared to CLI and what it accepts.
	if *cliMode {
		log.SetReportTimestamp(false)
		log.Debug("Input info:",
			"minPrefix", *minPrefix,
			"maxPrefix", *maxPrefix,
			"limit", *limit,
			"noFilter", *noFilter)

		inputHandler := cli.NewInputHandler(facilitator, *minPrefix, *maxPrefix, *limit, *noFilter)
		if err := inputHandler.Start(); err != nil {
			facilitator.Close()
			log.Fatalf("CLI error: %v", err)
		}
		facilitator.Close()
		return
	}

	log.Debug("spawning IPC")
	srv := server.NewServer(facilitator, appConfig)

	showStartupInfo(opts.DataDir, *locale)

	if err := srv.Start(); err != nil {
		facilitator.Close()
		log.Fatalf("Failed to start server: %v", err)
	}
	facilitator.Close()
}

// showStartupInfo displays some basic info about the init process.
func showStartupInfo(dataDir, locale string) {
	pid := os.Getpid()
	currentLevel := log.GetLevel()
	log.SetLevel(log.InfoLevel)

	println("==========")
	println(" LexiDict ")
	println("==========")
	log.Infof("Version: %s", Version)
	log.Infof("Process ID: [ %d ]", pid)
	log.Info("init: OK")
	log.Infof("data dir: ( %s )", dataDir)
	log.Infof("locale: [ %s ]", locale)
	log.Info("status: ready")
	println("==========")
	println("Press Ctrl+C to exit")

	log.SetLevel(currentLevel)
}
