package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/embertrace/embertrace/decoder"
	"github.com/embertrace/embertrace/engine"
	"github.com/embertrace/embertrace/perfetto"
	"github.com/embertrace/embertrace/rawlog"
	"github.com/embertrace/embertrace/symbolize"
)

// convertCmd implements subcommands.Command for the "convert" command.
type convertCmd struct {
	out  string
	elf  string
	gzip bool
}

// Name implements subcommands.Command.Name.
func (*convertCmd) Name() string {
	return "convert"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*convertCmd) Synopsis() string {
	return "convert a raw capture into a Perfetto trace file"
}

// Usage implements subcommands.Command.Usage.
func (*convertCmd) Usage() string {
	return "convert [-out trace.json] [-elf firmware.elf] [-gzip] <capture.emt>\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *convertCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.out, "out", "", "output trace path (default: capture path with .json)")
	f.StringVar(&c.elf, "elf", "", "firmware ELF for symbol resolution")
	f.BoolVar(&c.gzip, "gzip", false, "gzip the output trace")
}

// Execute implements subcommands.Command.Execute.
func (c *convertCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()

		return subcommands.ExitUsageError
	}
	capture := f.Arg(0)

	out := c.out
	if out == "" {
		out = strings.TrimSuffix(capture, ".emt") + ".json"
		if c.gzip {
			out += ".gz"
		}
	}

	if err := convert(capture, out, c.elf, c.gzip); err != nil {
		logrus.WithError(err).Error("convert failed")

		return subcommands.ExitFailure
	}
	fmt.Printf("wrote %s\n", out)

	return subcommands.ExitSuccess
}

func convert(capture, out, elfPath string, gz bool) error {
	var engineOpts []engine.Option
	if elfPath != "" {
		table, err := symbolize.Open(elfPath)
		if err != nil {
			return err
		}
		engineOpts = append(engineOpts, engine.WithResolver(table))
	}

	outFile, err := os.Create(out)
	if err != nil {
		return err
	}

	var writerOpts []perfetto.Option
	if gz {
		writerOpts = append(writerOpts, perfetto.WithGzip())
	}
	writer, err := perfetto.NewWriter(outFile, writerOpts...)
	if err != nil {
		outFile.Close()

		return err
	}

	dec := decoder.New()
	defer dec.Close()
	eng := engine.New(writer, engineOpts...)

	err = rawlog.ReplayFile(capture, func(chunk []byte) error {
		dec.Feed(chunk)
		for _, item := range dec.Decode() {
			// Transition errors already desynchronized the affected core;
			// conversion keeps going.
			_ = eng.Feed(item.TS, item.Ev)
		}

		return nil
	})
	if err != nil {
		writer.Close()

		return err
	}

	eng.Close()

	return writer.Close()
}
