package analysis

// builtins are the names always available in the script language.
var builtins = map[string]bool{
	"abs": true, "all": true, "any": true, "ascii": true, "bin": true,
	"bool": true, "bytes": true, "callable": true, "chr": true, "dict": true,
	"dir": true, "divmod": true, "enumerate": true, "filter": true,
	"float": true, "format": true, "frozenset": true, "getattr": true,
	"hasattr": true, "hash": true, "hex": true, "id": true, "int": true,
	"isinstance": true, "issubclass": true, "iter": true, "len": true,
	"list": true, "map": true, "max": true, "min": true, "next": true,
	"object": true, "oct": true, "open": true, "ord": true, "pow": true,
	"print": true, "range": true, "repr": true, "reversed": true,
	"round": true, "set": true, "setattr": true, "slice": true,
	"sorted": true, "str": true, "sum": true, "tuple": true, "type": true,
	"vars": true, "zip": true,

	"Exception": true, "ValueError": true, "TypeError": true,
	"KeyError": true, "IndexError": true, "RuntimeError": true,
	"AttributeError": true, "NotImplementedError": true,
	"ZeroDivisionError": true, "StopIteration": true, "AssertionError": true,
	"FileNotFoundError": true, "LookupError": true, "ArithmeticError": true,

	"__name__": true, "__file__": true, "__doc__": true,
}

// IsBuiltin reports whether name is a builtin of the script language.
func IsBuiltin(name string) bool { return builtins[name] }
