package entity

// Mapping is the original value → alias token table produced by
// anonymizing one document. It marshals to/from a flat JSON object and
// is persisted alongside the document's metadata.
type Mapping map[string]string

// Merge folds other into m, last write wins on key collision.
// Because aliases are content-derived, a collision on the same original
// value always carries the same alias, so pooling mappings from many
// documents is order-insensitive for well-formed inputs.
func (m Mapping) Merge(other Mapping) {
	for original, alias := range other {
		m[original] = alias
	}
}

// Invert returns the alias → original view used by deanonymization.
func (m Mapping) Invert() map[string]string {
	inv := make(map[string]string, len(m))
	for original, alias := range m {
		inv[alias] = original
	}
	return inv
}

// Summary counts mapped values per entity type, parsed from the alias
// tokens themselves. Malformed aliases are skipped.
func (m Mapping) Summary() map[Type]int {
	summary := make(map[Type]int)
	for _, alias := range m {
		if t, ok := AliasType(alias); ok {
			summary[t]++
		}
	}
	return summary
}
