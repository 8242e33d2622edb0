package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/tripkit/internal/app"
	"github.com/hpungsan/tripkit/internal/config"
	"github.com/hpungsan/tripkit/internal/logging"
	"github.com/hpungsan/tripkit/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"show": true, "checkin": true, "set-time": true, "clear": true,
	"add": true, "update": true, "delete": true, "reset": true,
	"checklist": true, "expense": true, "voucher": true,
	"weather": true, "export": true, "import": true, "serve": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

func printBanner() {
	fmt.Println(`
   _        _       _    _ _
  | |_ _ __(_)_ __ | | _(_) |_
  | __| '__| | '_ \| |/ / | __|
  | |_| |  | | |_) |   <| | |_
   \__|_|  |_| .__/|_|\_\_|\__|
             |_|

  Trip itinerary tracker

  Usage: trip <command> [options]
         trip --help

  MCP server mode requires piped input.`)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before opening anything
	if isHelpOrVersion() {
		if err := newCLIApp(nil).Run(os.Args); err != nil {
			fatal("%v", err)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if !isCLIMode() && len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'trip --help' for usage.\n")
		os.Exit(1)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fatal("could not determine home directory: %v", err)
	}
	baseDir := os.Getenv("TRIPKIT_HOME")
	if baseDir == "" {
		baseDir = filepath.Join(homeDir, ".tripkit")
	}

	cfg, err := config.Load(baseDir)
	if err != nil {
		fatal("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg, baseDir)
	if err != nil {
		fatal("failed to set up logging: %v", err)
	}

	a, err := app.Open(context.Background(), app.Options{
		BaseDir: baseDir,
		Config:  cfg,
		Logger:  logger,
	})
	if err != nil {
		fatal("failed to open trip data: %v", err)
	}
	defer a.Close()

	if isCLIMode() {
		if err := newCLIApp(a).Run(os.Args); err != nil {
			a.Close()
			fatal("%v", err)
		}
		return
	}

	// MCP server mode (default)
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logger.WithField("tools", unknown).Warn("ignoring unknown disabled_tools")
	}
	if unknown := mcp.ValidateDisabledTypes(cfg.DisabledTypes); len(unknown) > 0 {
		logger.WithField("types", unknown).Warn("ignoring unknown disabled_types")
	}
	if err := mcp.Run(a, Version); err != nil {
		a.Close()
		fatal("%v", err)
	}
}
