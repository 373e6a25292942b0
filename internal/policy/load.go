package policy

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/strata/internal/ir"
)

//go:embed builtin.cue
var builtinSource []byte

// Builtin compiles the embedded domain policy tables.
func Builtin() ([]ir.PolicySpec, error) {
	return CompileSource("builtin.cue", builtinSource)
}

// CompileSource compiles a single CUE document.
func CompileSource(filename string, src []byte) ([]ir.PolicySpec, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	return Compile(v)
}

// LoadDir compiles every CUE file in dir as one instance.
func LoadDir(dir string) ([]ir.PolicySpec, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("policy directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("policy directory: not a directory: %s", dir)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError("", inst.Err)
	}

	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, formatCUEError("", err)
	}
	return Compile(v)
}

// Merge overlays overrides onto base by policy name. Replaced policies keep
// their position; new ones are appended in override order.
func Merge(base, overrides []ir.PolicySpec) []ir.PolicySpec {
	out := make([]ir.PolicySpec, len(base))
	copy(out, base)

	pos := make(map[string]int, len(out))
	for i, s := range out {
		pos[s.Name] = i
	}
	for _, o := range overrides {
		if i, ok := pos[o.Name]; ok {
			out[i] = o
			continue
		}
		pos[o.Name] = len(out)
		out = append(out, o)
	}
	return out
}

// Load returns the built-in policies, overlaid with those in dir when dir is
// not empty, as a validated registry.
func Load(dir string) (*Registry, error) {
	specs, err := Builtin()
	if err != nil {
		return nil, fmt.Errorf("compiling built-in policies: %w", err)
	}
	if dir != "" {
		overrides, err := LoadDir(dir)
		if err != nil {
			return nil, err
		}
		specs = Merge(specs, overrides)
	}
	return NewRegistry(specs)
}
