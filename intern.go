package kiln

// Handle is a stable, process-lifetime-valid reference into the interner's
// byte buffer. Once returned by Intern, a handle is never invalidated or
// moved.
type Handle struct {
	Offset uint32
	Length uint32
}

// Interner deduplicates UTF-8 byte sequences into one monotonically
// growing buffer and returns stable (offset,length) handles.
// It never rewrites existing bytes; growth only appends and, when the
// backing array must move, doubles capacity (copying old bytes forward,
// never changing the meaning of an already-issued handle's offset).
type Interner struct {
	buf      []byte
	byString map[string]Handle
	lru      *comparisonLRU
}

// NewInterner creates an empty interner with a small initial capacity.
func NewInterner() *Interner {
	return &Interner{
		buf:      make([]byte, 0, 4096),
		byString: make(map[string]Handle),
		lru:      newComparisonLRU(32),
	}
}

// Intern returns s's handle, appending s to the buffer the first time it is
// seen. Idempotent: interning the same string twice returns the same handle.
func (in *Interner) Intern(s string) Handle {
	if h, ok := in.byString[s]; ok {
		return h
	}
	offset := uint32(len(in.buf))
	in.grow(len(s))
	in.buf = append(in.buf, s...)
	h := Handle{Offset: offset, Length: uint32(len(s))}
	in.byString[s] = h
	return h
}

// grow doubles the backing array's capacity whenever the next append would
// overflow it, so existing byte positions are never rewritten in place —
// only copied forward to a larger array.
func (in *Interner) grow(n int) {
	need := len(in.buf) + n
	if need <= cap(in.buf) {
		return
	}
	newCap := cap(in.buf) * 2
	if newCap == 0 {
		newCap = 4096
	}
	for newCap < need {
		newCap *= 2
	}
	grown := make([]byte, len(in.buf), newCap)
	copy(grown, in.buf)
	in.buf = grown
}

// Get returns the bytes a handle refers to.
func (in *Interner) Get(h Handle) []byte {
	return in.buf[h.Offset : h.Offset+h.Length]
}

// Equals compares the interned string at h against target without
// allocating.
func (in *Interner) Equals(h Handle, target string) bool {
	if int(h.Length) != len(target) {
		return false
	}
	return byteEqual(in.Get(h), target)
}

// StartsWith reports whether the interned string at h starts with prefix.
func (in *Interner) StartsWith(h Handle, prefix string) bool {
	if int(h.Length) < len(prefix) {
		return false
	}
	return byteEqual(in.buf[h.Offset:h.Offset+uint32(len(prefix))], prefix)
}

// EndsWith reports whether the interned string at h ends with suffix.
func (in *Interner) EndsWith(h Handle, suffix string) bool {
	if int(h.Length) < len(suffix) {
		return false
	}
	start := h.Offset + h.Length - uint32(len(suffix))
	return byteEqual(in.buf[start:start+uint32(len(suffix))], suffix)
}

// Contains reports whether the interned string at h contains sub. Recently
// queried substrings are cached in a small LRU of encoded comparison
// targets, an optimization the spec explicitly permits.
func (in *Interner) Contains(h Handle, sub string) bool {
	if len(sub) == 0 {
		return true
	}
	if int(h.Length) < len(sub) {
		return false
	}
	data := in.Get(h)
	pattern := in.lru.lookup(sub)
	return byteIndex(data, pattern) >= 0
}

func byteEqual(b []byte, s string) bool {
	if len(b) != len(s) {
		return false
	}
	for i := range b {
		if b[i] != s[i] {
			return false
		}
	}
	return true
}

func byteIndex(haystack []byte, needle []byte) int {
	n, m := len(haystack), len(needle)
	if m == 0 {
		return 0
	}
	for i := 0; i+m <= n; i++ {
		if byteEqual(haystack[i:i+m], string(needle)) {
			return i
		}
	}
	return -1
}

// comparisonLRU caches the []byte encoding of recently-used comparison
// targets so repeated Contains calls against the same literal don't
// re-encode the string each time.
type comparisonLRU struct {
	capacity int
	order    []string
	entries  map[string][]byte
}

func newComparisonLRU(capacity int) *comparisonLRU {
	return &comparisonLRU{
		capacity: capacity,
		entries:  make(map[string][]byte, capacity),
	}
}

func (c *comparisonLRU) lookup(s string) []byte {
	if b, ok := c.entries[s]; ok {
		c.touch(s)
		return b
	}
	b := []byte(s)
	if len(c.order) >= c.capacity && c.capacity > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[s] = b
	c.order = append(c.order, s)
	return b
}

func (c *comparisonLRU) touch(s string) {
	for i, k := range c.order {
		if k == s {
			c.order = append(c.order[:i], c.order[i+1:]...)
			c.order = append(c.order, s)
			return
		}
	}
}
