package main

import (
	"context"
	"flag"
	"fmt"
	"sort"

	"github.com/aclements/go-moremath/stats"
	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/embertrace/embertrace/decoder"
	"github.com/embertrace/embertrace/rawlog"
	"github.com/embertrace/embertrace/wire"
)

// statsCmd implements subcommands.Command for the "stats" command.
type statsCmd struct{}

// Name implements subcommands.Command.Name.
func (*statsCmd) Name() string {
	return "stats"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*statsCmd) Synopsis() string {
	return "report inter-event interval statistics of a capture"
}

// Usage implements subcommands.Command.Usage.
func (*statsCmd) Usage() string {
	return "stats <capture.emt>\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (*statsCmd) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*statsCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()

		return subcommands.ExitUsageError
	}

	if err := reportStats(f.Arg(0)); err != nil {
		logrus.WithError(err).Error("stats failed")

		return subcommands.ExitFailure
	}

	return subcommands.ExitSuccess
}

func reportStats(capture string) error {
	dec := decoder.New()
	defer dec.Close()

	var (
		intervals []float64
		perKind   = make(map[string]int)
		lastTS    uint64
		haveLast  bool
		dropped   uint64
	)

	err := rawlog.ReplayFile(capture, func(chunk []byte) error {
		dec.Feed(chunk)
		for _, item := range dec.Decode() {
			perKind[item.Ev.Kind().String()]++
			if loss, ok := item.Ev.(wire.DataLoss); ok {
				dropped += uint64(loss.Dropped)
			}
			if haveLast {
				intervals = append(intervals, float64(item.TS-lastTS))
			}
			lastTS = item.TS
			haveLast = true
		}

		return nil
	})
	if err != nil {
		return err
	}

	total := 0
	kinds := make([]string, 0, len(perKind))
	for kind, n := range perKind {
		kinds = append(kinds, kind)
		total += n
	}
	sort.Strings(kinds)

	fmt.Printf("events: %d (%d dropped on target, %d bytes resynced)\n", total, dropped, dec.Skipped())
	for _, kind := range kinds {
		fmt.Printf("  %-24s %d\n", kind, perKind[kind])
	}

	if len(intervals) == 0 {
		return nil
	}

	sort.Float64s(intervals)
	sample := stats.Sample{Xs: intervals, Sorted: true}

	// The share of short-format deltas drives the wire overhead; ~93% on
	// healthy targets.
	short := sort.SearchFloat64s(intervals, float64(wire.MaxShortDelta+1))

	fmt.Printf("intervals (us): mean=%.1f stddev=%.1f p50=%.0f p95=%.0f p99=%.0f max=%.0f\n",
		sample.Mean(), sample.StdDev(),
		sample.Quantile(0.50), sample.Quantile(0.95), sample.Quantile(0.99),
		intervals[len(intervals)-1])
	fmt.Printf("short-format deltas: %.1f%%\n", 100*float64(short)/float64(len(intervals)))

	return nil
}
