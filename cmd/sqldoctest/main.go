package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/shibukawa/sqldoctest"
	"go.uber.org/zap"
)

// Context represents the global context for commands
type Context struct {
	Config  string
	Verbose bool
	Quiet   bool
	Env     string
	Stdout  io.Writer
	Logger  *zap.Logger
}

// CLI represents the command-line interface
var CLI struct {
	Config  string     `help:"Configuration file path" default:"sqldoctest.yaml"`
	Verbose bool       `help:"Enable verbose output" short:"v"`
	Quiet   bool       `help:"Only print failures and the summary" short:"q"`
	Env     string     `help:"Database environment to use from config" default:"development"`
	Run     RunCmd     `cmd:"" help:"Run test files"`
	Parse   ParseCmd   `cmd:"" help:"Print the parsed structure of a test file"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// VersionCmd represents the version command
type VersionCmd struct{}

// Run executes the version command
func (cmd *VersionCmd) Run(ctx *Context) error {
	fmt.Fprintln(ctx.Stdout, "sqldoctest v0.1.0")
	return nil
}

// newLogger returns a development logger in verbose mode and a no-op logger otherwise.
func newLogger(verbose bool) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}

	return zap.NewDevelopment()
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("sqldoctest"),
		kong.Description("Declarative test runner for relational database behavior"),
	)

	logger, err := newLogger(CLI.Verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	defer func() { _ = logger.Sync() }()

	appCtx := &Context{
		Config:  CLI.Config,
		Verbose: CLI.Verbose,
		Quiet:   CLI.Quiet,
		Env:     CLI.Env,
		Stdout:  os.Stdout,
		Logger:  logger,
	}

	err = ctx.Run(appCtx)
	if err != nil {
		if !errors.Is(err, sqldoctest.ErrTestsFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}

		_ = logger.Sync()

		os.Exit(1)
	}
}
