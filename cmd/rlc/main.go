// Command rlc compiles a Rust-subset source file to textual LLVM IR.
//
// Usage:
//
//	rlc <input.rs>         write IR to ./main.ll
//	rlc -                  read stdin, write IR to stdout
//	rlc                    read stdin, write IR to stdout
//
// Flags:
//
//	-o, --output <file>    override the output path (ignored in stdin mode)
//	-v, --verbose          log pass timings and a wrapped-error cause chain
//	--compat-exit0         exit 0 on an unsupported-IR-feature skip
//
// Exit codes: 0 on success, 1 on a syntax or semantic
// failure (error text on stderr), 0 on an IR-side CodeUnsupportedFeature
// skip only when --compat-exit0 is given (otherwise that is also a failure).
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustlite/rlc/internal/compile"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var (
		output      string
		verbose     bool
		compatExit0 bool
	)

	cmd := &cobra.Command{
		Use:           "rlc [input.rs|-]",
		Short:         "Compile a Rust-subset source file to textual LLVM IR",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path (default main.ll; ignored in stdin mode)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log pass timings and error cause chains")
	cmd.Flags().BoolVar(&compatExit0, "compat-exit0", false, "exit 0 on an unsupported IR feature (historical behavior)")

	exitCode := 0
	cmd.RunE = func(_ *cobra.Command, posArgs []string) error {
		exitCode = runCompile(posArgs, output, verbose, compatExit0)
		return nil
	}
	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return exitCode
}

func runCompile(posArgs []string, output string, verbose, compatExit0 bool) int {
	log := newLogger(verbose)
	defer log.Sync() //nolint:errcheck

	stdinMode := len(posArgs) == 0 || posArgs[0] == "-"

	var source string
	if stdinMode {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "rlc: reading stdin: %v\n", err)
			return 1
		}
		source = string(b)
	} else {
		b, err := os.ReadFile(posArgs[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "rlc: %v\n", err)
			return 1
		}
		source = string(b)
	}

	res, err := compile.Compile(source, compile.Options{CompatExit0: compatExit0}, log)
	if err != nil {
		printError(err, verbose)
		return 1
	}
	if res.Skipped {
		return 0
	}

	if stdinMode {
		fmt.Print(res.IR)
		return 0
	}

	outPath := output
	if outPath == "" {
		outPath = "main.ll"
	}
	if err := os.WriteFile(outPath, []byte(res.IR), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "rlc: writing %s: %v\n", outPath, err)
		return 1
	}
	return 0
}

func newLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// printError renders err to stderr. In --verbose mode it also prints the
// wrapped cause chain for an IR-time failure, distinguishing it from an
// ordinary user-facing semantic diagnostic which carries no chain worth
// unwrapping.
func printError(err error, verbose bool) {
	fmt.Fprintf(os.Stderr, "rlc: %v\n", err)
	if !verbose {
		return
	}
	if cause := compile.Cause(err); cause != err {
		fmt.Fprintf(os.Stderr, "caused by: %v\n", cause)
	}
}
