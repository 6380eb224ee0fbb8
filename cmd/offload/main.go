package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/wippyai/offload/dispatch"
	"github.com/wippyai/offload/interp"
	"github.com/wippyai/offload/runtime"
	"github.com/wippyai/offload/soft"
)

func init() {
	// Demo scripts for the software backend so the tool is usable
	// without a wasm kernel file.
	soft.RegisterScript("copy", &soft.ScriptDef{
		Kernels: []soft.Kernel{
			func(env *soft.Env, in, out []byte, x, y, z uint32) error {
				copy(out, in)
				return nil
			},
		},
	})
	soft.RegisterScript("invert", &soft.ScriptDef{
		Kernels: []soft.Kernel{
			func(env *soft.Env, in, out []byte, x, y, z uint32) error {
				for i := range in {
					out[i] = ^in[i]
				}
				return nil
			},
		},
	})
}

func main() {
	var (
		backend     = flag.String("backend", soft.Name, "Backend to activate")
		wasmFile    = flag.String("wasm", "", "Path to a wasm kernel module (inc backend)")
		script      = flag.String("script", "copy", "Registered script name (softref backend)")
		slot        = flag.Int("kernel", 0, "Kernel slot to launch")
		size        = flag.Int("size", 64, "Element count of the generated input")
		inFile      = flag.String("in", "", "Input bytes file (overrides -size)")
		outFile     = flag.String("out", "", "Output bytes file (default: hex on stdout)")
		list        = flag.Bool("list", false, "List registered backends and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *list {
		fmt.Println(strings.Join(dispatch.Backends(), "\n"))
		return
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*backend, *wasmFile, *script, uint32(*slot), *size, *inFile, *outFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(backend, wasmFile, script string, slot uint32, size int, inFile, outFile string) error {
	input, err := loadInput(inFile, size)
	if err != nil {
		return err
	}

	rt, err := runtime.Open(backend)
	if err != nil {
		return fmt.Errorf("open backend: %w", err)
	}
	defer rt.Close()

	ctx, err := rt.NewContext(dispatch.ContextTypeNormal)
	if err != nil {
		return fmt.Errorf("create context: %w", err)
	}
	defer ctx.Destroy()

	output, err := launch(ctx, backend, wasmFile, script, slot, input)
	if err != nil {
		return err
	}

	if outFile != "" {
		return os.WriteFile(outFile, output, 0o644)
	}
	fmt.Printf("Backend: %s (io extension: %v)\n", rt.Name(), rt.HasIO())
	fmt.Printf("Input:  %s\n", hexPreview(input))
	fmt.Printf("Output: %s\n", hexPreview(output))
	return nil
}

// launch compiles the requested program, runs one kernel over the input
// bytes and reads the result back.
func launch(ctx *runtime.Context, backend, wasmFile, script string, slot uint32, input []byte) ([]byte, error) {
	in, out, err := allocPair(ctx, uint32(len(input)))
	if err != nil {
		return nil, err
	}
	if err := in.Data1D(0, 0, uint32(len(input)), input); err != nil {
		return nil, err
	}

	var scr *runtime.Script
	switch backend {
	case interp.Name:
		if wasmFile == "" {
			return nil, fmt.Errorf("the %s backend needs -wasm", interp.Name)
		}
		src, err := os.ReadFile(wasmFile)
		if err != nil {
			return nil, fmt.Errorf("read wasm: %w", err)
		}
		scr, err = ctx.NewScript(wasmFile, "", src)
		if err != nil {
			return nil, fmt.Errorf("compile: %w", err)
		}
	default:
		scr, err = ctx.NewScript(script, "", nil)
		if err != nil {
			return nil, fmt.Errorf("script %q: %w", script, err)
		}
	}

	if err := scr.ForEach(slot, in, out, nil, nil); err != nil {
		return nil, fmt.Errorf("launch: %w", err)
	}
	if err := ctx.Finish(); err != nil {
		return nil, fmt.Errorf("finish: %w", err)
	}
	if msg, ok, _ := ctx.GetErrorMessage(); ok {
		return nil, fmt.Errorf("kernel fault: %s", msg)
	}

	result := make([]byte, len(input))
	if err := out.Read1D(0, 0, uint32(len(input)), result); err != nil {
		return nil, err
	}
	return result, nil
}

func allocPair(ctx *runtime.Context, dimX uint32) (*runtime.Allocation, *runtime.Allocation, error) {
	elem, err := ctx.NewElement(dispatch.DataUnsigned8, dispatch.KindUser, false, 1)
	if err != nil {
		return nil, nil, err
	}
	typ, err := ctx.NewType(elem, dimX, 0, 0, false, false, dispatch.YUVNone)
	if err != nil {
		return nil, nil, err
	}
	in, err := ctx.NewAllocation(typ, dispatch.MipmapNone, dispatch.UsageScript)
	if err != nil {
		return nil, nil, err
	}
	out, err := ctx.NewAllocation(typ, dispatch.MipmapNone, dispatch.UsageScript)
	if err != nil {
		return nil, nil, err
	}
	return in, out, nil
}

func loadInput(inFile string, size int) ([]byte, error) {
	if inFile != "" {
		data, err := os.ReadFile(inFile)
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("input file is empty")
		}
		return data, nil
	}
	if size <= 0 {
		return nil, fmt.Errorf("size must be positive")
	}
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	return data, nil
}

func hexPreview(p []byte) string {
	const limit = 32
	var b strings.Builder
	n := len(p)
	if n > limit {
		n = limit
	}
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02x", p[i])
	}
	if len(p) > limit {
		fmt.Fprintf(&b, " … (%d bytes)", len(p))
	}
	return b.String()
}
