package cache

// ScopedKeyer prefixes every key of an inner Keyer. Servers sharing one Redis
// instance use it to keep their namespaces apart:
//
//	keyer := cache.NewScopedKeyer(cache.NewDefaultKeyer(), "stepbook:staging:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix. A nil inner keyer defaults to
// [NewDefaultKeyer].
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// NotebookKey generates a prefixed notebook key.
func (k *ScopedKeyer) NotebookKey(scriptHash string, opts NotebookKeyOpts) string {
	return k.prefix + k.inner.NotebookKey(scriptHash, opts)
}

// ScriptKey generates a prefixed script key.
func (k *ScopedKeyer) ScriptKey(notebookHash string, opts ScriptKeyOpts) string {
	return k.prefix + k.inner.ScriptKey(notebookHash, opts)
}

// GraphKey generates a prefixed graph key.
func (k *ScopedKeyer) GraphKey(inputHash string, opts GraphKeyOpts) string {
	return k.prefix + k.inner.GraphKey(inputHash, opts)
}
