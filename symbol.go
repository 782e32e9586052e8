package rhema

import "sync"

// Symbol is an interned identifier. Two symbols are equal exactly when
// they were interned from the same spelling, so comparison is a single
// pointer compare. The zero Symbol has an empty name and equals no
// interned symbol.
type Symbol struct {
	entry *symEntry
}

type symEntry struct {
	name string
}

var symtab = struct {
	sync.Mutex
	m map[string]*symEntry
}{m: make(map[string]*symEntry)}

// Intern returns the symbol for the given spelling, creating it on
// first use. The table is process-global and safe for concurrent use.
func Intern(name string) Symbol {
	symtab.Lock()
	defer symtab.Unlock()
	e, ok := symtab.m[name]
	if !ok {
		e = &symEntry{name: name}
		symtab.m[name] = e
	}
	return Symbol{entry: e}
}

// Name returns the interned spelling.
func (s Symbol) Name() string {
	if s.entry == nil {
		return ""
	}
	return s.entry.name
}

func (s Symbol) String() string { return s.Name() }
