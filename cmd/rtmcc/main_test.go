package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OmidArdestani/RTMC-Framework/internal/codegen"
	"github.com/OmidArdestani/RTMC-Framework/internal/config"
	"github.com/OmidArdestani/RTMC-Framework/internal/diag"
	"github.com/OmidArdestani/RTMC-Framework/internal/preprocess"
	"github.com/OmidArdestani/RTMC-Framework/internal/vmb"
)

func TestDefaultOutputPath(t *testing.T) {
	assert.Equal(t, "foo.vmb", defaultOutputPath("foo.rtmc"))
	assert.Equal(t, "dir/foo.vmb", defaultOutputPath("dir/foo.rtmc"))
	assert.Equal(t, "noext.vmb", defaultOutputPath("noext"))
	assert.Equal(t, "dir.with.dots/foo.vmb", defaultOutputPath("dir.with.dots/foo"))
}

func TestExitCodeForDiagError(t *testing.T) {
	assert.Equal(t, 4, exitCodeFor(diag.New(diag.UndefinedSymbol, "f", 1, 1, "x")))
	assert.Equal(t, 1, exitCodeFor(diag.New(diag.IncludeNotFound, "f", 1, 1, "x")))
	assert.Equal(t, 6, exitCodeFor(diag.New(diag.IOError, "f", 1, 1, "x")))
}

func writeTemp(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

// Scenario A end to end: a source file compiles through all six passes and
// produces a readable .vmb image with the expected RTOS_CREATE_TASK shape.
func TestRunScenarioALEDBlink(t *testing.T) {
	dir := t.TempDir()
	src := `void run(){ HW_GPIO_INIT(13,1); while(1){ HW_GPIO_SET(13,1); RTOS_DELAY_MS(500); HW_GPIO_SET(13,0); RTOS_DELAY_MS(500);} }
void main(){ StartTask(1024,0,2,1,run); }`
	in := writeTemp(t, dir, "led.rtmc", src)
	out := filepath.Join(dir, "led.vmb")

	opts := config.Options{Input: in, Output: out, Mode: codegen.Release}
	require.NoError(t, run(opts))

	prog, err := vmb.Read(out)
	require.NoError(t, err)
	found := false
	for _, ins := range prog.Instructions {
		if ins.Op == codegen.OpRtosCreateTask {
			found = true
			require.Len(t, ins.Operands, 5)
			assert.Equal(t, int64(1024), ins.Operands[0])
		}
	}
	assert.True(t, found)
}

// Scenario E: duplicate file-scope symbol aborts at the semantic pass with
// exit code 4.
func TestRunScenarioEDuplicateSymbol(t *testing.T) {
	dir := t.TempDir()
	in := writeTemp(t, dir, "dup.rtmc", `int x; float x;`)
	out := filepath.Join(dir, "dup.vmb")

	err := run(config.Options{Input: in, Output: out, Mode: codegen.Release})
	require.Error(t, err)
	assert.Equal(t, 4, exitCodeFor(err))
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunMissingInputIsPreprocessorError(t *testing.T) {
	err := run(config.Options{Input: "/nonexistent/does-not-exist.rtmc", Output: "/tmp/out.vmb", Mode: codegen.Release})
	require.Error(t, err)
	assert.Equal(t, 1, exitCodeFor(err))
}

func TestFlattenLinesJoinsWithNewlines(t *testing.T) {
	lines := []preprocess.Line{
		{Text: "int a;", File: "f.rtmc", Line: 1},
		{Text: "int b;", File: "f.rtmc", Line: 2},
	}
	assert.Equal(t, "int a;\nint b;", flattenLines(lines))
}
