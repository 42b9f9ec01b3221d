package pipeline

// AliasTable maps short names to canonical middleware identifiers.
type AliasTable struct {
	aliases map[string]string
}

// NewAliasTable returns a table holding a copy of aliases.
func NewAliasTable(aliases map[string]string) *AliasTable {
	t := &AliasTable{aliases: make(map[string]string, len(aliases))}
	t.Merge(aliases)
	return t
}

// Set maps alias to canonical, replacing any previous mapping.
func (t *AliasTable) Set(alias, canonical string) {
	if t.aliases == nil {
		t.aliases = make(map[string]string)
	}
	t.aliases[alias] = canonical
}

// Merge adds every mapping of aliases, keeping mappings it does not mention.
func (t *AliasTable) Merge(aliases map[string]string) {
	for alias, canonical := range aliases {
		t.Set(alias, canonical)
	}
}

// Replace drops every mapping and installs a copy of aliases.
func (t *AliasTable) Replace(aliases map[string]string) {
	t.aliases = make(map[string]string, len(aliases))
	t.Merge(aliases)
}

// All returns a copy of the mappings.
func (t *AliasTable) All() map[string]string {
	out := make(map[string]string, len(t.aliases))
	for k, v := range t.aliases {
		out[k] = v
	}
	return out
}

// Lookup returns the canonical identifier for name. Names without an alias
// are already canonical and come back unchanged. Substitution is a single
// step; an alias pointing at another alias is not followed.
func (t *AliasTable) Lookup(name string) string {
	if canonical, ok := t.aliases[name]; ok {
		return canonical
	}
	return name
}

// clone returns an independent copy.
func (t *AliasTable) clone() *AliasTable {
	return NewAliasTable(t.aliases)
}
