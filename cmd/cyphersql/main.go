// Command cyphersql runs Cypher queries against an in-memory graph,
// lowers them to SQL, or opens an interactive console.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/cyphersql/cyphersql/config"
	"github.com/cyphersql/cyphersql/metrics"
)

func main() {
	cfg := loadConfig()

	app := &cli.Command{
		Name:  "cyphersql",
		Usage: "run and translate Cypher queries without a database server",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "pretty-print the parsed AST and log each clause as it executes",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "result output format: table or json",
				Value: cfg.OutputFormat,
			},
			&cli.IntFlag{
				Name:  "max-hops",
				Usage: "depth cap for variable-length relationships with no explicit upper bound",
				Value: int64(cfg.MaxHops),
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			sqlCommand(),
			batchCommand(),
			replCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(debug bool) *zap.Logger {
	if !debug {
		return zap.NewNop()
	}

	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}

	return l
}

// newRecorder builds a Recorder against a fresh, process-local registry.
// Each invocation of the CLI is one short-lived process, so there is no
// long-running /metrics endpoint to scrape; the registry exists so
// Execute has somewhere real to report query and mutation counts.
func newRecorder() *metrics.Recorder {
	return metrics.New(prometheus.NewRegistry())
}

// maxHops reads the --max-hops root flag as the int config.Config.MaxHops
// and sqlgen/interpreter options both expect.
func maxHops(cmd *cli.Command) int {
	return int(cmd.Root().Int("max-hops"))
}

func loadConfig() config.Config {
	dir, err := os.Getwd()
	if err != nil {
		return config.Default()
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return config.Default()
	}

	return cfg
}
