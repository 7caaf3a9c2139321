package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/jschwinger233/dwarfidx"
	"github.com/jschwinger233/dwarfidx/internal/diag"
	"github.com/jschwinger233/dwarfidx/internal/materializer"
	"github.com/jschwinger233/dwarfidx/version"
)

func main() {
	app := &cli.App{
		Name:    "dwarfidx",
		Usage:   "build a DWARF name index over ELF64 object files and query it",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Value: false,
				Usage: "enable debug logging",
			},
			&cli.IntFlag{
				Name:  "capacity",
				Value: 0,
				Usage: "hash table capacity, rounded up to a power of two (0 = default 2^17)",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug") {
				log.SetLevel(log.DebugLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			findCommand,
			diagCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

var findCommand = &cli.Command{
	Name:      "find",
	Usage:     "look up a (name, tag) pair across one or more ELF64 files",
	ArgsUsage: "<name> <file> [file...]",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "tag",
			Value: "variable",
			Usage: "one of base_type, class_type, enumeration_type, structure_type, typedef, union_type, variable",
		},
	},
	Action: func(c *cli.Context) (err error) {
		name := c.Args().First()
		paths := c.Args().Tail()
		if name == "" || len(paths) == 0 {
			return cli.Exit("usage: dwarfidx find [--tag TAG] <name> <file> [file...]", 1)
		}

		tag, ok := materializer.ParseTag(c.String("tag"))
		if !ok {
			return cli.Exit("unknown --tag: "+c.String("tag"), 1)
		}

		opts := buildOptions(c)
		idx, err := dwarfidx.New(paths, opts...)
		if err != nil {
			return err
		}

		loc, err := idx.Find(name, tag)
		if err != nil {
			return err
		}

		bag, err := materializer.Materialize(name, loc)
		if err != nil {
			return err
		}
		log.Infof("%+v\n", bag)
		return nil
	},
}

var diagCommand = &cli.Command{
	Name:  "diag",
	Usage: "print host facts useful for a bug report",
	Action: func(c *cli.Context) error {
		report, err := diag.Collect()
		if err != nil {
			return err
		}
		diag.Fprint(os.Stdout, report)
		return nil
	},
}

func buildOptions(c *cli.Context) (opts []dwarfidx.Option) {
	if n := c.Int("capacity"); n > 0 {
		opts = append(opts, dwarfidx.WithCapacity(n))
	}
	return opts
}
