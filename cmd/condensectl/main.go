// Command condensectl runs the offline parts of the condensation pipeline:
// guardrail checks, deterministic previews and proof envelope verification.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/condensate/internal/config"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitError   = 2
)

var (
	verbose   bool
	jsonOut   bool
	inputFile string
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout))
}

func run(args []string, stdin io.Reader, stdout io.Writer) int {
	root := newRootCmd(stdin, stdout)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		if ee, ok := err.(*exitCodeError); ok {
			return ee.code
		}
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}
	return exitOK
}

// exitCodeError carries a non-zero exit status for results that are not
// command failures, such as a blocked guardrail verdict.
type exitCodeError struct {
	code int
	msg  string
}

func (e *exitCodeError) Error() string { return e.msg }

func newRootCmd(stdin io.Reader, stdout io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "condensectl",
		Short:         "Inspect condensation behavior without a running server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.Load()
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level to stderr")
	root.PersistentFlags().BoolVar(&jsonOut, "json", false, "print machine-readable JSON")
	root.PersistentFlags().StringVarP(&inputFile, "file", "f", "", "read input from a file instead of args or stdin")

	root.AddCommand(
		newCheckCmd(),
		newPreviewCmd(),
		newVerifyCmd(),
		newVersionCmd(),
	)
	return root
}

func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// readInput joins positional args, falling back to --file and then stdin.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	var (
		data []byte
		err  error
	)
	if inputFile != "" {
		data, err = os.ReadFile(inputFile)
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("no input text")
	}
	return text, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
