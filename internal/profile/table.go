package profile

import "fmt"

// Overrides adjusts selected profile fields at startup. Zero values keep the
// built-in default.
type Overrides struct {
	// ContextDocs replaces Profile.ContextDocs when positive.
	ContextDocs int
}

// Table holds one resolved Profile per supported family.
type Table struct {
	distil   Profile
	playpart Profile
}

// NewTable returns a Table of built-in profiles with overrides applied.
// Overrides for unsupported families are rejected.
func NewTable(overrides map[Family]Overrides) (*Table, error) {
	t := &Table{
		distil:   Default(DistilGPT2),
		playpart: Default(PlayPart),
	}
	for f, o := range overrides {
		if !f.Valid() {
			return nil, fmt.Errorf("profile: override for unsupported family %s", f)
		}
		if o.ContextDocs < 0 {
			return nil, fmt.Errorf("profile: %s: context docs must be >= 0, got %d", f, o.ContextDocs)
		}
		p := t.ref(f)
		if o.ContextDocs > 0 {
			p.ContextDocs = o.ContextDocs
		}
	}
	return t, nil
}

// Get returns the profile of f. ok is false for unsupported families.
func (t *Table) Get(f Family) (Profile, bool) {
	switch f {
	case DistilGPT2:
		return t.distil, true
	case PlayPart:
		return t.playpart, true
	case Unspecified:
		return Profile{}, false
	default:
		return Profile{}, false
	}
}

// All returns every profile in display order.
func (t *Table) All() []Profile {
	out := make([]Profile, 0, len(Families))
	for _, f := range Families {
		p, _ := t.Get(f)
		out = append(out, p)
	}
	return out
}

func (t *Table) ref(f Family) *Profile {
	switch f {
	case DistilGPT2:
		return &t.distil
	case PlayPart:
		return &t.playpart
	case Unspecified:
		panic("profile: ref of unspecified family")
	default:
		panic(fmt.Sprintf("profile: ref of %s", f))
	}
}
