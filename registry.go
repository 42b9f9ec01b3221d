package pipeline

import "sort"

// Entry is one registered middleware descriptor.
type Entry struct {
	Priority int
	// Sequence is the insertion counter; it only breaks priority ties.
	Sequence   uint64
	Descriptor Descriptor
}

type slotKey struct {
	priority int
	key      string
}

// Registry holds registered descriptors and the alias table. It does no
// locking: registration must not run concurrently with Snapshot.
type Registry struct {
	entries []Entry
	slots   map[slotKey]int // dedup key -> index into entries
	seq     uint64
	aliases *AliasTable
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		slots:   make(map[slotKey]int),
		aliases: NewAliasTable(nil),
	}
}

// Register adds descriptors at the given priority. Identifier descriptors
// have their identifier run through the alias table first. An identifier or
// instance type already registered at the same priority is replaced in
// place, keeping its position; func descriptors always append.
func (reg *Registry) Register(priority int, descs ...Descriptor) {
	for _, d := range descs {
		if d.IsIdentifier() {
			d = d.withIdentifier(reg.aliases.Lookup(d.id))
		}

		key, ok := d.dedupKey()
		if ok {
			if i, exists := reg.slots[slotKey{priority, key}]; exists {
				reg.entries[i].Descriptor = d
				continue
			}
		}

		reg.seq++
		reg.entries = append(reg.entries, Entry{
			Priority:   priority,
			Sequence:   reg.seq,
			Descriptor: d,
		})
		if ok {
			reg.slots[slotKey{priority, key}] = len(reg.entries) - 1
		}
	}
}

// Add registers loosely typed middleware at priority 0. See Describe for the
// accepted shapes; values of no known shape are kept and fail on resolution.
func (reg *Registry) Add(mws ...any) {
	reg.AddWithPriority(0, mws...)
}

// AddWithPriority is Add with an explicit priority.
func (reg *Registry) AddWithPriority(priority int, mws ...any) {
	descs := make([]Descriptor, len(mws))
	for i, mw := range mws {
		descs[i] = Describe(mw)
	}
	reg.Register(priority, descs...)
}

// SetAlias maps alias to a canonical identifier for later registrations.
func (reg *Registry) SetAlias(alias, canonical string) {
	reg.aliases.Set(alias, canonical)
}

// SetAliases adds aliases, keeping existing ones it does not mention.
func (reg *Registry) SetAliases(aliases map[string]string) {
	reg.aliases.Merge(aliases)
}

// ReplaceAliases swaps the whole alias table.
func (reg *Registry) ReplaceAliases(aliases map[string]string) {
	reg.aliases.Replace(aliases)
}

// Aliases returns a copy of the alias table.
func (reg *Registry) Aliases() map[string]string {
	return reg.aliases.All()
}

// Len returns the number of entries.
func (reg *Registry) Len() int {
	return len(reg.entries)
}

// Snapshot returns the entries ordered by priority (highest first), then by
// insertion. The registry is left untouched.
func (reg *Registry) Snapshot() []Entry {
	out := make([]Entry, len(reg.entries))
	copy(out, reg.entries)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Sequence < out[j].Sequence
	})
	return out
}

// Reset returns an empty registry carrying a copy of the aliases.
func (reg *Registry) Reset() *Registry {
	r := NewRegistry()
	r.aliases = reg.aliases.clone()
	return r
}
