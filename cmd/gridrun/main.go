package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/gridkit/compute/buffer"
	"github.com/gridkit/compute/element"
	"github.com/gridkit/compute/runtime"
	"github.com/gridkit/compute/shape"
)

// Buffers the runner allocates are flat arrays of this one-field cell.
var u32Cell = element.MustNew(element.Field{Name: "v", Kind: element.KindU32, Vector: 1, ArraySize: 1})

func main() {
	var (
		wasmFile    = flag.String("wasm", "", "Path to script wasm file")
		entry       = flag.String("entry", "", "Entry to run: root, forEach, or an invokable name")
		payload     = flag.String("payload", "", "Payload bytes for invokables, user data for forEach")
		rangeStr    = flag.String("range", "", "ForEach range as x0:x1[,y0:y1[,z0:z1]]")
		elems       = flag.Uint("elems", 0, "Allocate a 1-D u32 buffer with this many cells for forEach")
		cacheDir    = flag.String("cache", "", "Compilation cache directory")
		list        = flag.Bool("list", false, "List script entries and exit")
		verbose     = flag.Bool("v", false, "Verbose runtime logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *wasmFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: gridrun -wasm <file.wasm> [-entry name] [-payload data] [-range x0:x1] [-elems n]")
		fmt.Fprintln(os.Stderr, "       gridrun -wasm <file.wasm> -list")
		fmt.Fprintln(os.Stderr, "       gridrun -wasm <file.wasm> -i  (interactive mode)")
		os.Exit(1)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(*wasmFile, *cacheDir); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*wasmFile, *entry, *payload, *rangeStr, *cacheDir, uint32(*elems), *list, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(wasmFile, entry, payloadStr, rangeStr, cacheDir string, elems uint32, listOnly, verbose bool) error {
	ctx := context.Background()

	data, err := os.ReadFile(wasmFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	var logger *zap.Logger
	if verbose {
		logger, err = zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		defer logger.Sync()
	}

	rt, err := runtime.New(ctx, runtime.Config{Logger: logger, CacheDir: cacheDir})
	if err != nil {
		return fmt.Errorf("create runtime: %w", err)
	}
	defer rt.Close(ctx)

	rt.SetClientHandler(func(cmd uint32, payload []byte) bool {
		fmt.Printf("[client] cmd=%d payload=%x\n", cmd, payload)
		return true
	})

	script, err := rt.CompileScript(ctx, scriptName(wasmFile), "", data)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	defer script.Close(ctx)

	// Show script info
	fmt.Printf("Script: %s\n", wasmFile)
	fmt.Printf("Entries: root=%v forEach=%v threadable=%v\n",
		script.HasRoot(), script.HasForEach(), script.Threadable())
	if pragmas := script.Pragmas(); len(pragmas) > 0 {
		fmt.Printf("\nPragmas:\n")
		for _, p := range pragmas {
			fmt.Printf("  %s = %s\n", p.Key, p.Value)
		}
	}
	if n := script.VariableCount(); n > 0 {
		fmt.Printf("\nVariable slots:\n")
		for i := 0; i < n; i++ {
			fmt.Printf("  [%d] %s\n", i, script.VariableName(i))
		}
	}
	if n := script.FunctionCount(); n > 0 {
		fmt.Printf("\nInvokables:\n")
		for i := 0; i < n; i++ {
			sig := "()"
			if script.TakesPayload(i) {
				sig = "(payload)"
			}
			fmt.Printf("  [%d] %s%s\n", i, script.FunctionName(i), sig)
		}
	}

	if listOnly {
		return nil
	}

	// If no entry specified, pick the obvious one.
	if entry == "" {
		switch {
		case script.HasRoot():
			entry = "root"
		case script.HasForEach():
			entry = "forEach"
		case script.FunctionCount() == 1:
			entry = script.FunctionName(0)
		default:
			fmt.Printf("\nNo entry specified and no obvious default.\n")
			fmt.Printf("Use -entry to pick one of the entries above.\n")
			return nil
		}
	}

	switch entry {
	case "root":
		fmt.Printf("\nRunning root()...\n")
		ret, err := script.Run(ctx)
		if err != nil {
			return fmt.Errorf("run root: %w", err)
		}
		fmt.Printf("Result: %d\n", ret)

	case "forEach", "foreach":
		opts, err := parseRange(rangeStr)
		if err != nil {
			return err
		}

		var buf *buffer.Buffer
		if elems > 0 {
			sh, err := rt.Registry().Build(shape.Request{Element: u32Cell, DimX: elems})
			if err != nil {
				return fmt.Errorf("build shape: %w", err)
			}
			buf = buffer.New(sh)
			sh.Release()
			defer buf.Release()
		}

		fmt.Printf("\nRunning forEach...\n")
		if err := script.RunForEach(ctx, buf, buf, []byte(payloadStr), opts); err != nil {
			return fmt.Errorf("run forEach: %w", err)
		}
		if buf != nil {
			view := buf.Uint32View()
			n := len(view)
			if n > 8 {
				n = 8
			}
			fmt.Printf("out[0:%d] = %v\n", n, view[:n])
		} else {
			fmt.Printf("OK\n")
		}

	default:
		slot := -1
		for i := 0; i < script.FunctionCount(); i++ {
			if script.FunctionName(i) == entry {
				slot = i
				break
			}
		}
		if slot < 0 {
			return fmt.Errorf("no invokable named %q", entry)
		}
		fmt.Printf("\nInvoking %s...\n", entry)
		if err := script.InvokeFunction(ctx, slot, []byte(payloadStr)); err != nil {
			return fmt.Errorf("invoke %s: %w", entry, err)
		}
		fmt.Printf("OK\n")
	}

	return nil
}

func scriptName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".wasm")
}

// parseRange turns "x0:x1[,y0:y1[,z0:z1]]" into forEach options. An
// empty string means no clipping at all.
func parseRange(s string) (*runtime.ForEachOptions, error) {
	if s == "" {
		return nil, nil
	}
	opts := &runtime.ForEachOptions{}
	axes := []struct {
		start, end *uint32
	}{
		{&opts.XStart, &opts.XEnd},
		{&opts.YStart, &opts.YEnd},
		{&opts.ZStart, &opts.ZEnd},
	}
	parts := strings.Split(s, ",")
	if len(parts) > len(axes) {
		return nil, fmt.Errorf("range %q has more than three axes", s)
	}
	for i, part := range parts {
		bounds := strings.SplitN(part, ":", 2)
		if len(bounds) != 2 {
			return nil, fmt.Errorf("range axis %q is not start:end", part)
		}
		start, err := strconv.ParseUint(bounds[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("range start %q: %w", bounds[0], err)
		}
		end, err := strconv.ParseUint(bounds[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("range end %q: %w", bounds[1], err)
		}
		*axes[i].start = uint32(start)
		*axes[i].end = uint32(end)
	}
	return opts, nil
}
