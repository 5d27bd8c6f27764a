// Package frame provides the small in-memory table that transformer scripts
// operate on when they are executed for preview or round-trip checks.
//
// A [Table] has ordered named columns and rows of scalar values: nil (null),
// string, int64, float64 or bool. Tables are values as far as operations are
// concerned: every operation returns a new table and leaves its input
// untouched, so a script that keeps an older binding around still sees the
// old rows.
//
// # Loading
//
// [Loader] reads a source identifier such as "DAT-00000001" from
// <dir>/<id>.csv. Empty CSV fields load as null. A positive sample limits the
// number of rows returned.
//
// # Operations
//
// The operation vocabulary mirrors the migration runtime: filters
// ([FilterIsin], [FilterNotIsin], [FilterNotNull]), string cleanup
// ([StrUpper], [StrLower], [StrStrip]), column edits ([SetValue],
// [CopyColumn], [RenameColumns], [SelectColumns], [DropColumns],
// [FillNull]) and row shaping ([DropDuplicates], [Head]). [OpNames] lists
// them for the analyzer's known-operation table.
package frame
