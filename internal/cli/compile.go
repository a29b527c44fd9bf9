package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/eventbind/internal/compiler"
	"github.com/roach88/eventbind/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompiledArg is one argument of a compiled declaration.
type CompiledArg struct {
	Kind  string `json:"kind"`
	Token string `json:"token"`
	Type  string `json:"type,omitempty"`
}

// CompiledDeclaration is the JSON form of a binding declaration.
type CompiledDeclaration struct {
	Name       string        `json:"name"`
	Path       string        `json:"path"`
	Events     []string      `json:"events"`
	Args       []CompiledArg `json:"args"`
	DebounceMS int64         `json:"debounce_ms,omitempty"`
	Hash       string        `json:"hash"`
}

// CompilationResult holds the compiled declarations.
type CompilationResult struct {
	Declarations []CompiledDeclaration `json:"declarations"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <bindings-dir>",
		Short: "Compile CUE binding declarations",
		Long: `Compile the CUE binding declarations in a directory.

Every declaration under the top-level bindings struct is parsed:
argument tokens, declared types, events and debounce intervals.
Each compiled declaration carries a content hash that is stable
across runs.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, loadErrors := LoadBindings(dir, LoadModeCollectAll)

	// Handle load errors (directory not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputCompileError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputCompileError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, dir)
	for _, decl := range loadResult.Declarations {
		formatter.VerboseLog("Compiled binding: %s", decl.Name())
	}

	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	result := NewCompilationResult(loadResult.Declarations)

	if opts.Output != "" {
		if err := writeCompiledToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// NewCompilationResult converts declarations to their JSON form.
func NewCompilationResult(decls []*ir.BindingDeclaration) *CompilationResult {
	result := &CompilationResult{Declarations: make([]CompiledDeclaration, 0, len(decls))}
	for _, d := range decls {
		cd := CompiledDeclaration{
			Name:       d.Name(),
			Path:       d.Path(),
			Events:     d.Events(),
			Args:       make([]CompiledArg, 0, d.NumArgs()),
			DebounceMS: d.Debounce().Milliseconds(),
			Hash:       ir.DeclarationHash(d),
		}
		for _, a := range d.Args() {
			cd.Args = append(cd.Args, compiledArg(a))
		}
		result.Declarations = append(result.Declarations, cd)
	}
	return result
}

func compiledArg(a ir.ArgumentSpec) CompiledArg {
	ca := CompiledArg{Kind: a.Kind().String(), Token: a.String()}
	switch x := a.(type) {
	case ir.Literal:
		if x.Type != nil {
			ca.Type = x.Type.String()
		}
	case ir.BoundValue:
		if x.Type != nil {
			ca.Type = x.Type.String()
		}
	}
	return ca
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d binding(s)\n\n", len(result.Declarations))

	fmt.Fprintln(formatter.Writer, "Bindings:")
	for _, d := range result.Declarations {
		fmt.Fprintf(formatter.Writer, "  %s: %v → %s(%d arg(s))", d.Name, d.Events, d.Path, len(d.Args))
		if d.DebounceMS > 0 {
			fmt.Fprintf(formatter.Writer, " debounce %dms", d.DebounceMS)
		}
		fmt.Fprintln(formatter.Writer)
	}
	fmt.Fprintln(formatter.Writer)

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote compiled bindings to %s\n", outputFile)
	}
	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{
				Code:    code,
				Message: message,
			}
		}

		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		}

		if err := formatter.Respond(response); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return MapFieldToErrorCode(compileErr.Field), compileErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeCompiledToFile writes the compilation result to a file.
func writeCompiledToFile(result *CompilationResult, filename string) error {
	// Indented for readability; canonical JSON is used only for hashing
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling bindings: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
