// Package compile orchestrates the full pipeline: lex+parse -> the five
// semantic passes plus the integer-type confirmer -> predefinition -> the
// AST lowerer -> textual IR. It is the single entry point cmd/rlc calls;
// nothing outside this package sequences the stages, and each stage's
// failure aborts the run immediately.
package compile

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/rustlite/rlc/internal/diagnostic"
	"github.com/rustlite/rlc/internal/lower"
	"github.com/rustlite/rlc/internal/parser"
	"github.com/rustlite/rlc/internal/predefine"
	"github.com/rustlite/rlc/internal/printer"
	"github.com/rustlite/rlc/internal/sema"
)

// Options controls a single compilation run.
type Options struct {
	// CompatExit0 restores the historical behavior of exiting 0 on an
	// IR-side CodeUnsupportedFeature instead of treating it as a hard
	// error. Off by default.
	CompatExit0 bool
}

// Result is the outcome of one Compile call.
type Result struct {
	// IR is the rendered textual IR, valid only when Skipped is false and
	// no error was returned.
	IR string

	// Skipped is true only when CompatExit0 is set and lowering hit a
	// CodeUnsupportedFeature IRException: the caller should exit 0 with no
	// output.
	Skipped bool
}

// Compile runs the full pipeline over source and returns the rendered IR.
// A non-nil error is either a *parser.ParseError-based syntax failure, a
// *diagnostic.Diagnostic semantic failure, or a *diagnostic.IRException /
// wrapped-IRException IR-time failure; the caller (cmd/rlc) maps all three
// to "exit 1, error text on stderr", except when opts.CompatExit0 absorbs
// a CodeUnsupportedFeature into Result.Skipped.
func Compile(source string, opts Options, log *zap.Logger) (Result, error) {
	if log == nil {
		log = zap.NewNop()
	}

	start := time.Now()
	p, err := parser.New(source)
	if err != nil {
		return Result{}, errors.Wrap(err, "lex")
	}
	mod, parseErrs := p.Parse()
	if len(parseErrs) > 0 {
		msgs := make([]string, len(parseErrs))
		for i, e := range parseErrs {
			msgs[i] = e.Error()
		}
		return Result{}, errors.New(strings.Join(msgs, "\n"))
	}
	log.Debug("parsed", zap.Duration("elapsed", time.Since(start)))

	semaStart := time.Now()
	analyzer, err := sema.Analyze(mod)
	if err != nil {
		return Result{}, err
	}
	log.Debug("analyzed", zap.Duration("elapsed", time.Since(semaStart)))

	preStart := time.Now()
	pre := predefine.New(mod, analyzer.Root)
	if err := pre.Run(); err != nil {
		return handleIRError(err, opts)
	}
	log.Debug("predefined", zap.Duration("elapsed", time.Since(preStart)))

	lowerStart := time.Now()
	low := lower.New(mod, analyzer.Root, pre)
	if err := low.Run(); err != nil {
		return handleIRError(err, opts)
	}
	log.Debug("lowered", zap.Duration("elapsed", time.Since(lowerStart)))

	text := printer.Print(pre.Mod)
	log.Info("compiled", zap.Duration("total", time.Since(start)), zap.Int("bytes", len(text)))
	return Result{IR: text}, nil
}

// handleIRError classifies an IR-time failure: a CodeUnsupportedFeature
// IRException under CompatExit0 becomes a silent skip; everything else is
// wrapped with a stack trace for --verbose's cause-chain rendering.
// Ordinary semantic diagnostics pass through unwrapped — they are expected,
// user-facing errors with no chain worth printing.
func handleIRError(err error, opts Options) (Result, error) {
	if opts.CompatExit0 {
		if ire, ok := err.(*diagnostic.IRException); ok && ire.Code == diagnostic.CodeUnsupportedFeature {
			return Result{Skipped: true}, nil
		}
	}
	if _, ok := err.(*diagnostic.Diagnostic); ok {
		return Result{}, err
	}
	if _, ok := err.(*diagnostic.IRException); ok {
		return Result{}, errors.WithStack(err)
	}
	return Result{}, errors.Wrap(err, "compile")
}

// Cause mirrors github.com/pkg/errors.Cause for callers that only import
// this package; exposed so cmd/rlc's --verbose path can print the original
// diagnostic/IRException under a wrapped error without importing pkg/errors
// itself.
func Cause(err error) error {
	return errors.Cause(err)
}
