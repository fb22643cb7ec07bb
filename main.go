// Command tada is a terminal client for the tada todo API.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Makepad-fr/tada-client/internal/cli"
)

func main() {
	// Root flags (apply to every subcommand)
	groupPending := flag.Bool("group", false, "group output by pending/done")
	configPath := flag.String("config", "", "config file (default ~/.tada/config.toml)")
	apiURL := flag.String("api", "", "API base URL")
	theme := flag.String("theme", "", "classic, neon or mono")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Usage = cli.PrintHelp
	flag.Parse()

	// Hand the remaining args to the CLI runner.
	args := flag.Args()
	if len(args) == 0 {
		cli.PrintHelp()
		os.Exit(2)
	}

	code := cli.Run(args, cli.Options{
		Group:      *groupPending,
		ConfigPath: *configPath,
		APIURL:     *apiURL,
		Theme:      *theme,
		Verbose:    *verbose,
	})
	if code != 0 {
		fmt.Fprintln(os.Stderr)
	}
	os.Exit(code)
}
