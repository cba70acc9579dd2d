package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/cyphersql/cyphersql/cmd/cyphersql/repl"
	"github.com/cyphersql/cyphersql/store"
)

func replCommand() *cli.Command {
	return &cli.Command{
		Name:   "repl",
		Usage:  "open an interactive console over a fresh in-memory graph",
		Action: runREPL,
	}
}

func runREPL(ctx context.Context, cmd *cli.Command) error {
	s := store.New()
	logger := newLogger(cmd.Root().Bool("debug"))

	return repl.Run(s, logger, maxHops(cmd), newRecorder())
}
