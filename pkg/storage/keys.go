package storage

// Components returns the parent path of the filter, outermost first.
func (p PathFilter) Components() []string {
	switch p.Level {
	case LevelB2:
		return []string{p.B1}
	case LevelB3:
		return []string{p.B1, p.B2}
	case LevelDetail:
		return []string{p.B1, p.B2, p.B3}
	}
	return nil
}

// Complete reports whether every parent component the level needs is non-empty.
func (p PathFilter) Complete() bool {
	if p.Level < LevelB1 || p.Level > LevelDetail {
		return false
	}
	for _, c := range p.Components() {
		if c == "" {
			return false
		}
	}
	return true
}

// Scope maps the level to the override variant keyed under it.
func (p PathFilter) Scope() Scope {
	switch p.Level {
	case LevelB2:
		return ScopeB2
	case LevelB3:
		return ScopeB3
	case LevelDetail:
		return ScopeDetail
	}
	return ""
}

// overrideKey returns the (b1, b2, b3) columns of an override row. Unused
// components are stored as "" so the unique index covers every variant.
func overrideKey(p PathFilter) (b1, b2, b3 string) {
	switch p.Level {
	case LevelB2:
		return p.B1, "", ""
	case LevelB3:
		return p.B1, p.B2, ""
	case LevelDetail:
		return p.B1, p.B2, p.B3
	}
	return "", "", ""
}
