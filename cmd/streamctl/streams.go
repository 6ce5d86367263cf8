package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joshuapare/clusterkit/internal/buf"
)

func init() {
	rootCmd.AddCommand(newLsCmd())
	rootCmd.AddCommand(newCatCmd())
}

func newLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls <file>",
		Short: "List the streams of a storage file",
		Long: `The ls command prints one line per stream: its index, its length and
the first and last cluster of its chain (-1 for an empty stream).

Example:
  streamctl ls data.ck
  streamctl ls data.ck --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLs(args)
		},
	}
	return cmd
}

type streamEntry struct {
	Index    int    `json:"index"`
	Size     uint64 `json:"size"`
	Start    int32  `json:"start"`
	End      int32  `json:"end"`
	Clusters int    `json:"clusters"`
}

func runLs(args []string) error {
	s, err := openStorage(args[0])
	if err != nil {
		return err
	}
	listings, err := s.Listings()
	if err != nil {
		return err
	}
	entries := make([]streamEntry, len(listings))
	for i, l := range listings {
		entries[i] = streamEntry{
			Index:    i,
			Size:     l.Size,
			Start:    l.Start,
			End:      l.End,
			Clusters: int(buf.CeilDiv(int64(l.Size), int64(s.ClusterSize()))),
		}
	}

	if jsonOut {
		return printJSON(entries)
	}
	printInfo("%6s  %12s  %8s  %8s  %8s\n", "INDEX", "SIZE", "START", "END", "CLUSTERS")
	for _, e := range entries {
		printInfo("%6d  %12d  %8d  %8d  %8d\n", e.Index, e.Size, e.Start, e.End, e.Clusters)
	}
	printVerbose("%d stream(s), %d cluster(s)\n", len(entries), s.ClusterCount())
	return nil
}

func newCatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cat <file> <index>",
		Short: "Write the contents of one stream to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCat(args)
		},
	}
	return cmd
}

func runCat(args []string) error {
	index, err := parseIndex(args[1])
	if err != nil {
		return err
	}
	s, err := openStorage(args[0])
	if err != nil {
		return err
	}
	data, err := s.ReadAll(index)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func parseIndex(arg string) (int, error) {
	i, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid stream index %q", arg)
	}
	return i, nil
}
