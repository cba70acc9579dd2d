package main

import (
	"context"
	"fmt"
	"os"

	"github.com/k0kubun/pp/v3"
	"github.com/urfave/cli/v3"

	"github.com/cyphersql/cyphersql/parser"
	"github.com/cyphersql/cyphersql/sqlgen"
)

func sqlCommand() *cli.Command {
	return &cli.Command{
		Name:      "sql",
		Usage:     "lower a Cypher query to parameterised SQL without executing it",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "file",
				Usage: "read the query from a file instead of the argument",
			},
		},
		Action: runSQL,
	}
}

func runSQL(ctx context.Context, cmd *cli.Command) error {
	src, err := queryText(cmd)
	if err != nil {
		return err
	}

	rec := newRecorder()

	q, err := parser.Parse(src)
	if err != nil {
		rec.ObserveParseError()
		return err
	}

	if cmd.Root().Bool("debug") {
		pp.Println(q)
	}

	res, err := sqlgen.Generate(q, sqlgen.WithMaxHops(maxHops(cmd)))
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, res.SQL)

	if len(res.Params) > 0 {
		fmt.Fprintln(os.Stdout, "--")

		for i, p := range res.Params {
			fmt.Fprintf(os.Stdout, "-- $%d = %v\n", i+1, p)
		}
	}

	return nil
}
