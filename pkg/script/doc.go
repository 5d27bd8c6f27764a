// Package script implements the lexer, parser, syntax tree and printer for
// the Python subset that transformer scripts and notebook cells are written
// in.
//
// # Parsing
//
// [Parse] turns source text into a [Module]; [ParseExpr] parses a single
// expression. Errors carry the SYNTAX_ERROR code and the position of the
// offending token:
//
//	mod, err := script.Parse(src)
//	if err != nil {
//	    return err // *errors.Error with Line and Column set
//	}
//
// The supported language covers imports, function definitions, assignment in
// all its forms, the compound statements (if, for, while, with, try) and the
// full expression grammar including comprehensions, lambdas and f-strings.
// Classes, async code, generators and assignment expressions are rejected.
//
// # Identifiers
//
// Every identifier occurrence is a distinct [*Name] node. Analysis records
// these nodes and renaming rewrites [Name.ID] in place, so string literals,
// attribute names and keyword argument names can never be touched by a
// rename. Binding occurrences in imports, function definitions and except
// clauses are Name nodes too.
//
// # Printing
//
// [Format] emits canonical source: four-space indentation, double-quoted
// strings where possible, the minimal parentheses precedence requires, and
// one argument per line for calls wider than [MaxLineWidth]. Standalone
// comments and single blank lines between statements are preserved.
// Printing is deterministic.
package script
