package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/k0kubun/pp/v3"
	"github.com/urfave/cli/v3"

	"github.com/cyphersql/cyphersql/interpreter"
	"github.com/cyphersql/cyphersql/parser"
	"github.com/cyphersql/cyphersql/record"
	"github.com/cyphersql/cyphersql/store"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "execute a Cypher query against a fresh in-memory graph",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "file",
				Usage: "read the query from a file instead of the argument",
			},
		},
		Action: runRun,
	}
}

func runRun(ctx context.Context, cmd *cli.Command) error {
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

	debug := cmd.Root().Bool("debug")
	if debug {
		pp.Println(q)
	}

	s := store.New()
	logger := newLogger(debug)

	in := interpreter.New(s,
		interpreter.WithLogger(logger),
		interpreter.WithMaxHops(maxHops(cmd)),
		interpreter.WithMetrics(rec),
	)

	res, err := in.Execute(q)
	if err != nil {
		return err
	}

	return printResult(res, cmd.Root().String("format"))
}

func queryText(cmd *cli.Command) (string, error) {
	if path := cmd.String("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}

		return string(data), nil
	}

	if cmd.Args().Len() == 0 {
		return "", fmt.Errorf("usage: cyphersql run <query> (or --file path)")
	}

	return cmd.Args().First(), nil
}

func printResult(res *record.Result, format string) error {
	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(struct {
			Keys    []string       `json:"keys"`
			Records [][]any        `json:"records"`
			Summary record.Summary `json:"summary"`
		}{res.Keys, res.Records, res.Summary})
	}

	printTable(res)

	return nil
}

func printTable(res *record.Result) {
	if len(res.Keys) > 0 {
		for i, k := range res.Keys {
			if i > 0 {
				fmt.Print(" | ")
			}

			fmt.Print(k)
		}

		fmt.Println()

		for _, row := range res.Records {
			for i, v := range row {
				if i > 0 {
					fmt.Print(" | ")
				}

				fmt.Print(v)
			}

			fmt.Println()
		}
	}

	fmt.Printf(
		"nodes created: %d, relationships created: %d, properties set: %d, labels added: %d, labels removed: %d, nodes deleted: %d, relationships deleted: %d\n",
		res.Summary.NodesCreated, res.Summary.RelationshipsCreated, res.Summary.PropertiesSet,
		res.Summary.LabelsAdded, res.Summary.LabelsRemoved, res.Summary.NodesDeleted, res.Summary.RelationshipsDeleted,
	)
}
