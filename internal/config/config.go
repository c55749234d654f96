// Package config holds the compile options a single rtmcc invocation runs
// with, populated straight from flags the way ya/main.go's package-level
// flag vars feed its pipeline functions — here collected into one struct
// instead of scattered globals, since cmd/rtmcc composes passes in-process
// rather than shelling out to five separate binaries.
package config

import "github.com/OmidArdestani/RTMC-Framework/internal/codegen"

// Options is the full set of knobs a compile runs with.
type Options struct {
	Input       string
	Output      string
	Mode        codegen.Mode
	Verbose     bool
	DumpTokens  bool
	DumpAST     bool
	Optimize    bool
	IncludeDirs []string
}
