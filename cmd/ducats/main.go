package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"

	"github.com/google/subcommands"

	"github.com/mmynk/ducats/internal/cli"
	"github.com/mmynk/ducats/internal/config"
	"github.com/mmynk/ducats/pkg/logging"
)

var (
	envFile  = flag.String("env-file", "", "Read configuration from this file instead of ./.env")
	logLevel = flag.String("log-level", "warn", "Log level for diagnostics on stderr")
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	env := cli.NewEnv(nil, nil)
	cli.Register(commander, env)

	flag.Parse()

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(int(subcommands.ExitFailure))
	}
	env.Config = cfg
	env.Logger = logging.Setup(*logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	status := commander.Execute(ctx)
	stop()
	os.Exit(int(status))
}
