// rtmcc - RT-Micro-C compiler driver.
//
// Usage: rtmcc <input.rtmc> [-o <output.vmb>] [--release] [--verbose] [--ast] [--tokens]
//
// Unlike lang/ya/main.go, which pipes five standalone binaries together via
// os/exec, rtmcc composes preprocess -> lex -> parse -> analyze -> codegen
// -> serialize as in-process function calls: the spec calls for one
// compiler binary, not a pipeline of tools. The flag surface and
// exit-code discipline otherwise follow ya/main.go's conventions.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/OmidArdestani/RTMC-Framework/internal/ast"
	"github.com/OmidArdestani/RTMC-Framework/internal/codegen"
	"github.com/OmidArdestani/RTMC-Framework/internal/config"
	"github.com/OmidArdestani/RTMC-Framework/internal/diag"
	"github.com/OmidArdestani/RTMC-Framework/internal/lexer"
	"github.com/OmidArdestani/RTMC-Framework/internal/optimize"
	"github.com/OmidArdestani/RTMC-Framework/internal/parser"
	"github.com/OmidArdestani/RTMC-Framework/internal/preprocess"
	"github.com/OmidArdestani/RTMC-Framework/internal/sema"
	"github.com/OmidArdestani/RTMC-Framework/internal/token"
	"github.com/OmidArdestani/RTMC-Framework/internal/vmb"
)

// includeDirs collects repeated "-I dir" flags, the way ya/main.go collects
// repeated source-file positional args.
type includeDirs []string

func (d *includeDirs) String() string { return strings.Join(*d, ",") }
func (d *includeDirs) Set(v string) error {
	*d = append(*d, v)
	return nil
}

var (
	outputFile = flag.String("o", "", "output .vmb path (default: <input> with .vmb extension)")
	release    = flag.Bool("release", false, "omit debug symbols and source positions from the image")
	verbose    = flag.Bool("v", false, "verbose pass-by-pass progress on stderr")
	dumpAST    = flag.Bool("ast", false, "dump the parsed AST to stderr and continue")
	dumpTokens = flag.Bool("tokens", false, "dump the token stream to stderr and continue")
	optFlag    = flag.Bool("optimize", false, "fold constant expressions and eliminate dead branches (spec §4.4.5, non-mandatory)")
	includes   includeDirs
)

func init() {
	flag.BoolVar(verbose, "verbose", false, "alias of -v")
	flag.Var(&includes, "I", "additional #include search directory (repeatable)")
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s <input.rtmc> [-o output.vmb] [--release] [--verbose] [--ast] [--tokens] [--optimize] [-I dir]...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	opts := config.Options{
		Input:       flag.Arg(0),
		Output:      *outputFile,
		Mode:        codegen.Debug,
		Verbose:     *verbose,
		DumpAST:     *dumpAST,
		DumpTokens:  *dumpTokens,
		Optimize:    *optFlag,
		IncludeDirs: includes,
	}
	if *release {
		opts.Mode = codegen.Release
	}
	if opts.Output == "" {
		opts.Output = defaultOutputPath(opts.Input)
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "rtmcc: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

// defaultOutputPath swaps the input's extension for ".vmb", or appends it
// if the input has no extension, mirroring ya/main.go's baseNoExt handling.
func defaultOutputPath(input string) string {
	base := input
	if i := strings.LastIndexByte(input, '.'); i >= 0 && strings.LastIndexByte(input, '/') < i {
		base = input[:i]
	}
	return base + ".vmb"
}

func exitCodeFor(err error) int {
	if derr, ok := err.(*diag.Error); ok {
		return derr.Kind.ExitCode()
	}
	return 6
}

// run executes the six-pass pipeline in sequence, per spec §1's ordering:
// preprocess, lex, parse, analyze, codegen, serialize. The first pass to
// fail aborts the rest.
func run(opts config.Options) error {
	logStage(opts, "preprocessing %s", opts.Input)
	lines, derr := preprocess.New(preprocess.Options{IncludeDirs: opts.IncludeDirs}).Run(opts.Input)
	if derr != nil {
		return derr
	}
	src := flattenLines(lines)

	logStage(opts, "lexing")
	toks, derr := lexer.Lex(opts.Input, src)
	if derr != nil {
		return derr
	}
	if opts.DumpTokens {
		dumpTokenStream(toks)
	}

	logStage(opts, "parsing")
	prog, derr := parser.Parse(opts.Input, toks)
	if derr != nil {
		return derr
	}
	if opts.Optimize {
		logStage(opts, "optimizing")
		optimize.Run(prog)
	}
	if opts.DumpAST {
		dumpProgram(prog)
	}

	logStage(opts, "analyzing")
	res, derr := sema.Analyze(opts.Input, prog)
	if derr != nil {
		return derr
	}

	logStage(opts, "generating code")
	out, derr := codegen.Generate(opts.Input, prog, res, opts.Mode)
	if derr != nil {
		return derr
	}

	logStage(opts, "writing %s", opts.Output)
	if err := vmb.Write(opts.Output, out); err != nil {
		return diag.New(diag.IOError, opts.Output, 0, 0, "%v", err)
	}
	return nil
}

// flattenLines joins the preprocessor's per-line, per-origin-tagged output
// into the single source string lexer.Lex expects. Diagnostics after this
// point report positions within the flattened text rather than remapped
// back through #include boundaries: spec §4.1 requires only that an
// unresolved #include itself be reported against its own directive line
// (which preprocess.Run already does, before flattening ever happens), not
// that every later pass re-derive original per-file positions for expanded
// text — so no remapping side-table is built here.
func flattenLines(lines []preprocess.Line) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.Text)
	}
	return b.String()
}

func logStage(opts config.Options, format string, args ...interface{}) {
	if !opts.Verbose {
		return
	}
	fmt.Fprintf(os.Stderr, "rtmcc: "+format+"\n", args...)
}

func dumpTokenStream(toks []token.Token) {
	for _, t := range toks {
		fmt.Fprintln(os.Stderr, t)
	}
}

// dumpProgram prints one line per top-level declaration: its concrete AST
// node type and source position. Not a full pretty-printer - just enough
// to see what the parser produced, the way -ast is meant to be used
// (a quick sanity check, not a serialization format).
func dumpProgram(prog *ast.Program) {
	for _, d := range prog.Decls {
		name := ""
		switch n := d.(type) {
		case *ast.FuncDecl:
			name = n.Name
		case *ast.GlobalVarDecl:
			name = n.Name
		case *ast.AggregateDecl:
			name = n.Name
		case *ast.MessageDecl:
			name = n.Name
		case *ast.IncludeDecl:
			name = n.Path
		}
		fmt.Fprintf(os.Stderr, "%T %s @ %s\n", d, name, d.GetLoc())
	}
}
