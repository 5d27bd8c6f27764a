// Package interp executes transformer scripts and generated notebooks.
//
// It is a tree-walking evaluator over the [script] syntax tree, covering the
// subset of the language transformer scripts use: functions and lambdas,
// closures, control flow, try/except, comprehensions, f-strings and the
// usual builtins. Dataframe operations and display calls come from host
// modules backed by [frame]:
//
//   - migrator_studio: the operation vocabulary, step and load_source
//   - migrator_studio.notebook: display, display_md, display_table and
//     load_source for notebook cells
//
// [RunScript] calls the entry function of a script with its sources loaded
// into a dict; [RunNotebook] runs every cell in order in one shared
// namespace. Both return a [Result] holding the final value and everything
// the run displayed, which is what round-trip checks compare.
//
// Execution honors context cancellation between statements. Runtime failures
// are reported as RUNTIME_ERROR with the line (and cell) that raised them.
package interp
