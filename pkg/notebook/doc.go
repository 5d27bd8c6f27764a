// Package notebook converts renamed transformer programs into reactive cell
// notebooks and exports edited notebooks back into transformer scripts.
//
// A notebook is an ordered list of cells. Every cell declares the bindings
// it produces (outputs) and the bindings it takes from strictly earlier
// cells (inputs); no binding has two producers. [Generate] builds a
// [Document] from a [rename.Program], [Render] writes its text form and
// [Parse] reads it back. [Export] turns notebook text into a transformer
// script and [Graph] derives the cell dependency graph.
//
// # Text Format
//
//	# stepbook notebook v1
//	# source: TFRM-001.py
//	#
//	# Module docstring.
//
//	# %% {"cell":0,"kind":"imports","outputs":["display","filter_isin"],"inputs":[]}
//	from migrator_studio.notebook import display, display_md, display_table, load_source
//	from migrator_studio import filter_isin
//
// Each cell starts with a "# %% " header holding a JSON object whose keys
// appear in a fixed order. The header is authoritative for inputs and
// outputs; the body runs until the next header.
package notebook
