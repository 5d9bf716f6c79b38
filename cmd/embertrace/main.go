// Command embertrace converts and inspects raw trace captures.
//
// Subcommands:
//
//	convert  raw capture → Perfetto-compatible JSON trace
//	stats    inter-event interval statistics of a capture
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(new(convertCmd), "")
	subcommands.Register(new(statsCmd), "")

	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	logrus.SetLevel(logrus.WarnLevel)
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	os.Exit(int(subcommands.Execute(context.Background())))
}
