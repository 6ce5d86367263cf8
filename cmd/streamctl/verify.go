package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/clusterkit/verify"
)

func init() {
	rootCmd.AddCommand(newVerifyCmd())
}

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <file>",
		Short: "Check every structural invariant of a storage file",
		Long: `The verify command walks the header, the directory and every cluster
chain of a storage file and reports the first violation found. Unlike the
other commands it does not stop at the streams it needs.

Example:
  streamctl verify data.ck
  streamctl verify data.ck --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(args)
		},
	}
	return cmd
}

func runVerify(args []string) error {
	path := args[0]
	printVerbose("Verifying storage: %s\n", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	verr := verify.All(data)

	result := map[string]any{
		"file":  path,
		"valid": verr == nil,
	}
	var ve *verify.ValidationError
	if errors.As(verr, &ve) {
		result["type"] = ve.Type
		result["message"] = ve.Message
		if ve.Offset >= 0 {
			result["offset"] = ve.Offset
		}
		for k, v := range ve.Details {
			result[k] = v
		}
	} else if verr != nil {
		result["error"] = verr.Error()
	}

	if jsonOut {
		if err := printJSON(result); err != nil {
			return err
		}
	} else if verr == nil {
		printInfo("%s: valid\n", path)
	} else {
		printInfo("%s: INVALID\n  %v\n", path, verr)
	}

	if verr != nil {
		return fmt.Errorf("verification failed: %w", verr)
	}
	return nil
}
