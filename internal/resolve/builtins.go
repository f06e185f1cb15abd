package resolve

// builtins are the library class names each language makes visible without
// an import. References to them resolve to external classes.
var builtins = map[string]map[string]bool{
	"java":       set(javaBuiltins...),
	"typescript": set(typescriptBuiltins...),
}

var javaBuiltins = []string{
	"AutoCloseable", "Boolean", "Byte", "CharSequence", "Character", "Class",
	"ClassCastException", "Cloneable", "Comparable", "Deprecated", "Double",
	"Enum", "Error", "Exception", "Float", "FunctionalInterface",
	"IllegalArgumentException", "IllegalStateException",
	"IndexOutOfBoundsException", "Integer", "InterruptedException", "Iterable",
	"Long", "Math", "NullPointerException", "Number", "Override", "Record",
	"Runnable", "RuntimeException", "SafeVarargs", "Short", "String",
	"StringBuffer", "StringBuilder", "SuppressWarnings", "System", "Thread",
	"Throwable", "UnsupportedOperationException", "Void", "var",
}

var typescriptBuiltins = []string{
	"Array", "ArrayBuffer", "ArrayLike", "AsyncIterable", "Awaited", "BigInt",
	"Boolean", "Date", "Error", "Exclude", "Extract", "Function",
	"InstanceType", "Iterable", "IterableIterator", "Iterator", "JSON", "Map",
	"Math", "NonNullable", "Number", "Omit", "Parameters", "Partial", "Pick",
	"Promise", "PromiseLike", "PropertyKey", "RangeError", "Readonly",
	"ReadonlyArray", "Record", "RegExp", "Required", "ReturnType", "Set",
	"String", "Symbol", "TypeError", "Uint8Array", "WeakMap", "WeakSet",
}

func set(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}
