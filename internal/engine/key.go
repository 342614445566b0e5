package engine

import "strconv"

// Key names the next write within a frame: either a named string key (for
// Mapping frames) or a numeric sequence index (for Sequence frames).
type Key struct {
	isIndex bool
	index   int64
	str     string
}

// StringKey builds a named key.
func StringKey(s string) Key { return Key{str: s} }

// IndexKey builds a numeric sequence index.
func IndexKey(i int64) Key { return Key{isIndex: true, index: i} }

// String renders the key the way ASLANKey::as_string does: a named key
// renders as itself, an index renders as its decimal form, so a single
// string-keyed lookup path serves both Mapping and Sequence frames.
func (k Key) String() string {
	if k.isIndex {
		return strconv.FormatInt(k.index, 10)
	}
	return k.str
}

func (k Key) IsIndex() bool   { return k.isIndex }
func (k Key) Index() int64    { return k.index }
