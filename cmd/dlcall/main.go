package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/wippyai/ffi-runtime/cdecl"
	"github.com/wippyai/ffi-runtime/ctypes"
	"github.com/wippyai/ffi-runtime/runtime"
	"github.com/wippyai/ffi-runtime/transcoder"
)

func main() {
	var (
		libName     = flag.String("lib", "", "Library name or path (empty = current process)")
		libVersion  = flag.String("libver", "", "Library version for bare names (e.g. 6, 3.45)")
		declFile    = flag.String("decl", "", "Path to a declaration file")
		declText    = flag.String("d", "", "Inline declaration text")
		funcName    = flag.String("func", "", "Function to call (optional)")
		argsStr     = flag.String("args", "", "Call arguments (comma-separated)")
		sizeExpr    = flag.String("sizeof", "", "Print size/alignment of a type expression and exit")
		list        = flag.Bool("list", false, "List declared functions and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *sizeExpr != "" {
		if err := runSizeof(*sizeExpr); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *declFile == "" && *declText == "" {
		fmt.Fprintln(os.Stderr, "Usage: dlcall -lib <name> -decl <file.h> [-func name] [-args a,b,...]")
		fmt.Fprintln(os.Stderr, "       dlcall -lib <name> -decl <file.h> -list")
		fmt.Fprintln(os.Stderr, "       dlcall -lib <name> -decl <file.h> -i  (interactive mode)")
		fmt.Fprintln(os.Stderr, "       dlcall -lib <name> -d 'double cos(double);' -func cos -args 0")
		fmt.Fprintln(os.Stderr, "       dlcall -sizeof 'struct { long x; long y; }'")
		os.Exit(1)
	}

	src := *declText
	if *declFile != "" {
		data, err := os.ReadFile(*declFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: read declarations: %v\n", err)
			os.Exit(1)
		}
		src = string(data)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(*libName, *libVersion, src); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*libName, *libVersion, src, *funcName, *argsStr, *list); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runSizeof(expr string) error {
	typ, err := parseTypeExpr(expr)
	if err != nil {
		return err
	}
	if typ == nil {
		return fmt.Errorf("void has no size")
	}
	size, err := transcoder.SizeOf(typ)
	if err != nil {
		return err
	}
	align, err := transcoder.AlignOf(typ)
	if err != nil {
		return err
	}
	fmt.Printf("%s: size %d, alignment %d\n", ctypes.Name(typ), size, align)
	return nil
}

// parseTypeExpr accepts either a plain type expression or declaration
// text whose last struct/union/typedef is the subject.
func parseTypeExpr(expr string) (ctypes.Type, error) {
	if typ, err := cdecl.ParseType(expr); err == nil {
		return typ, nil
	}
	f, err := cdecl.ParseFile(expr)
	if err != nil {
		return nil, err
	}
	for _, s := range f.Structs {
		return s, nil
	}
	for _, u := range f.Unions {
		return u, nil
	}
	for _, t := range f.Typedefs {
		return t, nil
	}
	return nil, fmt.Errorf("no type declared in %q", expr)
}

func run(libName, libVersion, src, funcName, argsStr string, listOnly bool) error {
	ctx := context.Background()

	decls, err := cdecl.ParseFile(src)
	if err != nil {
		return fmt.Errorf("parse declarations: %w", err)
	}
	if len(decls.Funcs) == 0 {
		return fmt.Errorf("no functions declared")
	}

	fmt.Printf("Library: %s\n", displayLib(libName, libVersion))
	fmt.Printf("Functions: %d\n", len(decls.Funcs))
	fmt.Printf("Globals: %d\n", len(decls.Globals))

	fmt.Printf("\nDeclared functions:\n")
	for _, d := range decls.Funcs {
		fmt.Printf("  %s\n", formatDecl(d))
	}

	if listOnly {
		return nil
	}

	rt := runtime.New()
	defer rt.Close()

	lib, err := rt.Open(ctx, spec(libName, libVersion))
	if err != nil {
		return fmt.Errorf("open library: %w", err)
	}

	if err := lib.BindAll(decls.Funcs...); err != nil {
		return fmt.Errorf("bind: %w", err)
	}

	// If no function specified, a single declaration is unambiguous.
	if funcName == "" {
		if len(decls.Funcs) != 1 {
			fmt.Printf("\nNo function specified. Use -func to pick one.\n")
			return nil
		}
		funcName = decls.Funcs[0].Name
	}

	proc, ok := lib.Proc(funcName)
	if !ok {
		return fmt.Errorf("function %q not declared", funcName)
	}

	var rawArgs []string
	if argsStr != "" {
		rawArgs = strings.Split(argsStr, ",")
	}
	args, rwSlots, err := convertArgs(proc.Sig().Params, rawArgs)
	if err != nil {
		return err
	}

	fmt.Printf("\nCalling %s(%s)...\n", funcName, argsStr)
	result, err := proc.Call(ctx, args...)
	if err != nil {
		return fmt.Errorf("call %s: %w", funcName, err)
	}

	if proc.Sig().Ret != nil {
		fmt.Printf("Result: %v\n", result)
	} else {
		fmt.Printf("Done (void)\n")
	}
	for _, slot := range rwSlots {
		fmt.Printf("%s (rw): %v\n", slot.name, slot.value())
	}
	return nil
}

func spec(name, version string) *runtime.LibrarySpec {
	if name == "" {
		return runtime.CurrentProcess
	}
	return &runtime.LibrarySpec{Name: name, Version: version}
}

func displayLib(name, version string) string {
	if name == "" {
		return "current process"
	}
	if version != "" {
		return name + " " + version
	}
	return name
}

func formatDecl(d runtime.FuncDecl) string {
	var params []string
	for _, p := range d.Params {
		s := ctypes.Name(p.Type)
		if p.RW {
			s = "rw " + s
		}
		if p.Name != "" {
			s += " " + p.Name
		}
		params = append(params, s)
	}
	ret := "void"
	if d.Ret != nil {
		ret = ctypes.Name(d.Ret)
	}
	name := d.Name
	if d.Symbol != "" && d.Symbol != d.Name {
		name += "@" + d.Symbol
	}
	return fmt.Sprintf("%s %s(%s)", ret, name, strings.Join(params, ", "))
}
