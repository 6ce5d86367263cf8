package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/clusterkit/cluster"
)

var (
	createClusterSize uint32
	createForce       bool
	inputFile         string
)

func init() {
	create := newCreateCmd()
	create.Flags().Uint32Var(&createClusterSize, "cluster-size", 0, "Cluster payload size in bytes (default from config)")
	create.Flags().BoolVar(&createForce, "force", false, "Overwrite an existing file")
	rootCmd.AddCommand(create)

	for _, cmd := range []*cobra.Command{newAddCmd(), newAppendCmd(), newInsertCmd()} {
		cmd.Flags().StringVarP(&inputFile, "file", "f", "", "Read the data from this file instead of the argument or stdin")
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(newRmCmd(), newSwapCmd(), newClearCmd())
}

func newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <file>",
		Short: "Create an empty storage file",
		Long: `The create command writes a storage file with no streams.

Example:
  streamctl create data.ck
  streamctl create data.ck --cluster-size 64`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(args)
		},
	}
}

func runCreate(args []string) error {
	path := args[0]
	if _, err := os.Stat(path); err == nil && !createForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if createForce {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	if createClusterSize != 0 {
		cfg.ClusterSize = createClusterSize
	}
	err := mutate(path, func(s *cluster.Storage) error {
		printVerbose("Initialized %s with %d-byte clusters\n", path, s.ClusterSize())
		return nil
	})
	if err != nil {
		return err
	}
	printInfo("Created %s\n", path)
	return nil
}

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <file> [data]",
		Short: "Append a new stream",
		Long: `The add command appends a new stream holding the given data, the
contents of --file, or stdin, and prints its index.

Example:
  streamctl add data.ck "hello"
  streamctl add data.ck --file blob.bin
  echo hello | streamctl add data.ck`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[1:])
			if err != nil {
				return err
			}
			var index int
			err = mutate(args[0], func(s *cluster.Storage) error {
				index, err = s.AddBytes(data)
				return err
			})
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(map[string]any{"index": index, "size": len(data)})
			}
			printInfo("%d\n", index)
			return nil
		},
	}
}

func newAppendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "append <file> <index> [data]",
		Short: "Append data to the end of a stream",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[1])
			if err != nil {
				return err
			}
			data, err := readInput(args[2:])
			if err != nil {
				return err
			}
			return mutate(args[0], func(s *cluster.Storage) error {
				return s.AppendBytes(index, data)
			})
		},
	}
}

func newInsertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "insert <file> <index> [data]",
		Short: "Insert a new stream before index",
		Long: `The insert command creates a stream at index and shifts the streams
at and above it up by one.

Example:
  streamctl insert data.ck 0 "first"`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[1])
			if err != nil {
				return err
			}
			data, err := readInput(args[2:])
			if err != nil {
				return err
			}
			return mutate(args[0], func(s *cluster.Storage) error {
				h, err := s.Insert(index)
				if err != nil {
					return err
				}
				if _, err := h.Write(data); err != nil {
					_ = h.Close()
					return err
				}
				return h.Close()
			})
		},
	}
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <file> <index>",
		Short: "Remove a stream and free its clusters",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[1])
			if err != nil {
				return err
			}
			return mutate(args[0], func(s *cluster.Storage) error {
				return s.Remove(index)
			})
		},
	}
}

func newSwapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "swap <file> <i> <j>",
		Short: "Exchange the positions of two streams",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := parseIndex(args[1])
			if err != nil {
				return err
			}
			j, err := parseIndex(args[2])
			if err != nil {
				return err
			}
			return mutate(args[0], func(s *cluster.Storage) error {
				return s.Swap(i, j)
			})
		},
	}
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <file> <index>",
		Short: "Empty a stream, keeping its index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[1])
			if err != nil {
				return err
			}
			return mutate(args[0], func(s *cluster.Storage) error {
				return s.Clear(index)
			})
		},
	}
}

// readInput returns the literal argument, the --file contents, or stdin.
func readInput(rest []string) ([]byte, error) {
	switch {
	case inputFile != "" && len(rest) > 0:
		return nil, errors.New("give either data or --file, not both")
	case inputFile != "":
		return os.ReadFile(inputFile)
	case len(rest) > 0:
		return []byte(rest[0]), nil
	default:
		return io.ReadAll(os.Stdin)
	}
}
