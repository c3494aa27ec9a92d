// Command agentrt hosts an LLM-backed analysis agent behind the agent
// runtime's HTTP contract and keeps it registered with a registry.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/urfave/cli.v1"

	"github.com/hupe1980/agentrt"
	"github.com/hupe1980/agentrt/config"
)

var (
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}

	portFlag = cli.IntFlag{
		Name:  "port",
		Usage: "listen port, overrides the configuration (0 picks a free port)",
		Value: -1,
	}

	registryFlag = cli.StringFlag{
		Name:  "registry",
		Usage: "registry address, overrides the configuration",
	}

	serveCommand = cli.Command{
		Action:      serve,
		Name:        "serve",
		Usage:       "Serve the configured agent",
		Flags:       []cli.Flag{configFileFlag, portFlag, registryFlag},
		Description: `The serve command starts the agent and registers it until interrupted.`,
	}

	dumpConfigCommand = cli.Command{
		Action:      dumpConfig,
		Name:        "dumpconfig",
		Usage:       "Show configuration values",
		ArgsUsage:   "[file]",
		Flags:       []cli.Flag{configFileFlag},
		Description: `The dumpconfig command shows the effective configuration as TOML.`,
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "agentrt"
	app.Usage = "host an analysis agent with lease-based registration"
	app.Commands = []cli.Command{serveCommand, dumpConfigCommand}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(ctx *cli.Context) (config.Config, error) {
	cfg, err := config.Load(ctx.String(configFileFlag.Name))
	if err != nil {
		return config.Config{}, err
	}

	if p := ctx.Int(portFlag.Name); p >= 0 {
		cfg.Server.Port = p
	}

	if r := ctx.String(registryFlag.Name); r != "" {
		cfg.Registry.Endpoint = r
	}

	return cfg, nil
}

func serve(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	analyzer, err := newAnalyzer(cfg.Model)
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := agentrt.New(sigCtx, cfg, analyzer)
	if err != nil {
		return err
	}

	return a.Serve(sigCtx)
}

// dumpConfig is the dumpconfig command.
func dumpConfig(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	out, err := config.Marshal(cfg)
	if err != nil {
		return err
	}

	dump := os.Stdout

	if ctx.NArg() > 0 {
		dump, err = os.OpenFile(ctx.Args().Get(0), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return err
		}
		defer dump.Close()
	}

	_, err = dump.Write(out)

	return err
}
