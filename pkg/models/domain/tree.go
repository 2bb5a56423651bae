package domain

import "sync"

const RootBandName = "Root"

type BandID int32

const NoBand BandID = -1

// Band is one materialized band stored in a Tree.
type Band struct {
	ID          BandID
	Parent      BandID
	Name        string
	Definition  string
	Orientation Orientation
	Data        Row
	Columns     map[string][]Value // column-wise rows of a vertical band
	Children    []BandID
}

// Tree is the arena holding every band produced by one extraction.
// Bands are addressed by id and never move; children are attached by the
// extraction that owns the parent, in their final order.
type Tree struct {
	mu    sync.RWMutex
	bands []*Band

	firstLevel []string
	formats    map[string]string
}

func NewTree() *Tree {
	t := &Tree{formats: make(map[string]string)}
	t.bands = append(t.bands, &Band{
		ID:     0,
		Parent: NoBand,
		Name:   RootBandName,
		Data:   NewRow(0),
	})
	return t
}

func (t *Tree) Root() BandID {
	return 0
}

// Add allocates a band under parent. The band is not yet listed among the
// parent's children; see Attach.
func (t *Tree) Add(parent BandID, b Band) BandID {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := BandID(len(t.bands))
	b.ID = id
	b.Parent = parent
	b.Children = nil
	t.bands = append(t.bands, &b)
	return id
}

// Attach appends children to parent in the given order.
func (t *Tree) Attach(parent BandID, children ...BandID) {
	if len(children) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.bands[parent]
	p.Children = append(p.Children, children...)
}

// Band returns a copy of the band header; slices are shared and must not be modified.
func (t *Tree) Band(id BandID) Band {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return *t.bands[id]
}

func (t *Tree) Data(id BandID) Row {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.bands[id].Data
}

func (t *Tree) Children(id BandID) []BandID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c := t.bands[id].Children
	out := make([]BandID, len(c))
	copy(out, c)
	return out
}

// ChildrenNamed returns the direct children of id with the given name, in order.
func (t *Tree) ChildrenNamed(id BandID, name string) []BandID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []BandID
	for _, c := range t.bands[id].Children {
		if t.bands[c].Name == name {
			out = append(out, c)
		}
	}
	return out
}

// FindAll returns every band named name, in depth-first pre-order.
func (t *Tree) FindAll(name string) []BandID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []BandID
	var walk func(id BandID)
	walk = func(id BandID) {
		b := t.bands[id]
		if id != 0 && b.Name == name {
			out = append(out, id)
		}
		for _, c := range b.Children {
			walk(c)
		}
	}
	walk(0)
	return out
}

// Path returns the names from the root down to id, root excluded.
func (t *Tree) Path(id BandID) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []string
	for id > 0 {
		b := t.bands[id]
		out = append([]string{b.Name}, out...)
		id = b.Parent
	}
	return out
}

// Len returns the number of bands including the root.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.bands)
}

func (t *Tree) AddFirstLevelBand(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, n := range t.firstLevel {
		if n == name {
			return
		}
	}
	t.firstLevel = append(t.firstLevel, name)
}

func (t *Tree) FirstLevelBands() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.firstLevel))
	copy(out, t.firstLevel)
	return out
}

func (t *Tree) AddFormats(formats []FieldFormat) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, f := range formats {
		t.formats[f.Key()] = f.Format
	}
}

func (t *Tree) Formats() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]string, len(t.formats))
	for k, v := range t.formats {
		out[k] = v
	}
	return out
}
