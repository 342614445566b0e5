package engine

// RegisteredInstruction is one annotation attached to a key (or, for an
// implicit array, to one part of that key) by an instruction delimiter.
type RegisteredInstruction struct {
	Key       string
	Name      string
	Index     int
	Args      []string
	PartIndex int
}

// frame is one stack frame: the sub-tree it owns plus all of the per-key
// bookkeeping a container level needs (write policy, locks, duplicate-seen,
// implicit-array promotion, void flags, and the next implicit array index).
type frame struct {
	innerResult            Node
	writePolicy            map[string]WritePolicy
	locked                 map[string]bool
	currentKey             Key
	minArrayIndex          int64
	void                   map[string]bool
	duplicateSeen          map[string]bool
	implicitArray          map[string]bool
	registeredInstructions []RegisteredInstruction
}

func newRootFrame(defaultFieldName string) *frame {
	f := &frame{
		innerResult:   NewMapping(),
		writePolicy:   map[string]WritePolicy{defaultFieldName: PolicyDefault},
		locked:        map[string]bool{defaultFieldName: false},
		currentKey:    StringKey(defaultFieldName),
		void:          map[string]bool{},
		duplicateSeen: map[string]bool{},
		implicitArray: map[string]bool{},
	}
	f.innerResult.MapSet(defaultFieldName, Text(""))
	return f
}

func newObjectFrame(defaultFieldName string, initial Node) *frame {
	return &frame{
		innerResult:   initial,
		writePolicy:   map[string]WritePolicy{},
		locked:        map[string]bool{},
		currentKey:    StringKey(defaultFieldName),
		void:          map[string]bool{},
		duplicateSeen: map[string]bool{},
		implicitArray: map[string]bool{},
	}
}

func newArrayFrame(initial Node) *frame {
	return &frame{
		innerResult:   initial,
		writePolicy:   map[string]WritePolicy{},
		locked:        map[string]bool{},
		currentKey:    IndexKey(-1),
		void:          map[string]bool{},
		duplicateSeen: map[string]bool{},
		implicitArray: map[string]bool{},
	}
}

func (f *frame) currentKeyString() string { return f.currentKey.String() }

// registerInstruction appends an instruction unconditionally; callers check
// shouldRegisterInstruction first.
func (f *frame) registerInstruction(inst RegisteredInstruction) {
	f.registeredInstructions = append(f.registeredInstructions, inst)
}

// shouldRegisterInstruction rejects a registration only when the key has
// both been seen before (duplicate_seen) and locked into KeepFirst — the
// conjunction spec.md's Open Questions section calls out explicitly; either
// condition alone still accepts the registration.
func (f *frame) shouldRegisterInstruction(key string) bool {
	seen := f.duplicateSeen[key]
	keepFirst := f.writePolicy[key] == PolicyKeepFirst
	return !seen || !keepFirst
}

// setWritePolicy applies the one-assignment-per-key rule: a first
// assignment is recorded; a later one is a no-op except for the
// side-effecting previously-recorded policies (KeepLast wipes the stored
// text and instructions for the key, KeepFirst locks it).
func (f *frame) setWritePolicy(key string, policy WritePolicy) {
	if existing, ok := f.writePolicyLookup(key); ok {
		switch existing {
		case PolicyKeepLast:
			f.innerResult.SetAtKey(key, Text(""))
			kept := f.registeredInstructions[:0]
			for _, inst := range f.registeredInstructions {
				if inst.Key != key {
					kept = append(kept, inst)
				}
			}
			f.registeredInstructions = kept
		case PolicyKeepFirst:
			f.locked[key] = true
		}
		return
	}
	f.writePolicy[key] = policy
}

func (f *frame) writePolicyLookup(key string) (WritePolicy, bool) {
	p, ok := f.writePolicy[key]
	return p, ok
}
