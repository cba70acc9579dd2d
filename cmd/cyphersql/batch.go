package main

import (
	"context"
	"fmt"
	"os"

	gocodewalker "github.com/boyter/gocodewalker"
	"github.com/urfave/cli/v3"

	"github.com/cyphersql/cyphersql/interpreter"
	"github.com/cyphersql/cyphersql/parser"
	"github.com/cyphersql/cyphersql/store"
)

func batchCommand() *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Usage:     "run every .cypher script under a directory against one shared graph",
		ArgsUsage: "<directory>",
		Action:    runBatch,
	}
}

// runBatch walks dir for .cypher/.cql scripts, grounded on gocodewalker's
// producer/consumer file-queue shape, and runs each one against a
// single shared store in the order the walker yields them.
func runBatch(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() == 0 {
		return fmt.Errorf("usage: cyphersql batch <directory>")
	}

	dir := cmd.Args().First()

	fileListQueue := make(chan *gocodewalker.File, 100)

	walker := gocodewalker.NewFileWalker(dir, fileListQueue)
	walker.AllowListExtensions = []string{"cypher", "cql"}

	errorChan := make(chan error, 10)
	walker.SetErrorHandler(func(e error) bool {
		errorChan <- e
		return true
	})

	go func() {
		_ = walker.Start()
	}()

	s := store.New()
	logger := newLogger(cmd.Root().Bool("debug"))
	rec := newRecorder()
	in := interpreter.New(s,
		interpreter.WithLogger(logger),
		interpreter.WithMaxHops(maxHops(cmd)),
		interpreter.WithMetrics(rec),
	)

	var failed bool

	for f := range fileListQueue {
		data, err := os.ReadFile(f.Location)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", f.Location, err)
			failed = true

			continue
		}

		q, err := parser.Parse(string(data))
		if err != nil {
			rec.ObserveParseError()
			fmt.Fprintf(os.Stderr, "%s: %v\n", f.Location, err)
			failed = true

			continue
		}

		res, err := in.Execute(q)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", f.Location, err)
			failed = true

			continue
		}

		fmt.Printf("%s: ", f.Location)
		printTable(res)
	}

	select {
	case err := <-errorChan:
		return err
	default:
	}

	if failed {
		return cli.Exit("one or more scripts failed", 1)
	}

	return nil
}
