package ecs

import (
	"slices"
	"sync"
)

// EntityID identifies an entity. IDs are never reused within a World.
type EntityID int

// Kind names a component table. Query callers pass kinds as plain strings
// so scripts and the renderer share one vocabulary.
type Kind string

// Component kinds known to the engine.
const (
	KindSprite Kind = "sprite"
	KindScript Kind = "script"
)

// Sprite is the appearance component read by the frame renderer.
// Depth grows away from the viewer: larger values are drawn first.
type Sprite struct {
	Texture  string
	Position [2]float32
	Scale    [2]float32
	Depth    float32
}

// NewSprite returns a sprite with unit scale.
func NewSprite(texture string, x, y, depth float32) Sprite {
	return Sprite{
		Texture:  texture,
		Position: [2]float32{x, y},
		Scale:    [2]float32{1, 1},
		Depth:    depth,
	}
}

// Script names the per-entity function the script system calls each tick.
type Script struct {
	Function string
}

// World owns entity ids and the component tables.
//
// World is not safe for concurrent mutation; the engine drives it from the
// main loop only. The mutex guards id allocation so that ids stay unique if
// a loader goroutine spawns entities before the loop starts.
type World struct {
	mu     sync.Mutex
	nextID EntityID
	alive  map[EntityID]struct{}

	Sprites *Table[Sprite]
	Scripts *Table[Script]

	tables map[Kind]Storage
}

// NewWorld creates an empty world with the built-in component tables.
func NewWorld() *World {
	w := &World{
		nextID:  1,
		alive:   make(map[EntityID]struct{}),
		Sprites: NewTable[Sprite](),
		Scripts: NewTable[Script](),
	}
	w.tables = map[Kind]Storage{
		KindSprite: w.Sprites,
		KindScript: w.Scripts,
	}
	return w
}

// Register attaches an additional component table under kind, replacing
// any table registered earlier under the same kind.
func (w *World) Register(kind Kind, t Storage) {
	w.tables[kind] = t
}

// Spawn allocates a new entity id.
func (w *World) Spawn() EntityID {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextID
	w.nextID++
	w.alive[id] = struct{}{}
	return id
}

// Despawn removes the entity and all of its components.
// It reports whether the entity existed.
func (w *World) Despawn(id EntityID) bool {
	w.mu.Lock()
	_, ok := w.alive[id]
	delete(w.alive, id)
	w.mu.Unlock()
	if !ok {
		return false
	}
	for _, t := range w.tables {
		t.Remove(id)
	}
	return true
}

// Alive reports whether id refers to a spawned, not yet despawned entity.
func (w *World) Alive(id EntityID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.alive[id]
	return ok
}

// Len returns the number of live entities.
func (w *World) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.alive)
}

// Has reports whether entity id has a component of the given kind.
// Unknown kinds report false.
func (w *World) Has(id EntityID, kind Kind) bool {
	t, ok := w.tables[kind]
	if !ok {
		return false
	}
	return t.Has(id)
}

// ForEach calls visit once for every entity that has all of the named
// components, in ascending id order. An empty component list or an unknown
// kind matches nothing.
//
// visit must not add or remove components of the queried kinds.
func (w *World) ForEach(components []string, visit func(id EntityID)) {
	if len(components) == 0 {
		return
	}
	tables := make([]Storage, 0, len(components))
	for _, name := range components {
		t, ok := w.tables[Kind(name)]
		if !ok {
			return
		}
		tables = append(tables, t)
	}

	// Drive the scan from the smallest table.
	slices.SortFunc(tables, func(a, b Storage) int { return a.Len() - b.Len() })
	for _, id := range tables[0].IDs() {
		matched := true
		for _, t := range tables[1:] {
			if !t.Has(id) {
				matched = false
				break
			}
		}
		if matched {
			visit(id)
		}
	}
}

// Sprite returns the sprite component of id.
func (w *World) Sprite(id EntityID) (Sprite, bool) {
	return w.Sprites.Get(id)
}

// Script returns the script component of id.
func (w *World) Script(id EntityID) (Script, bool) {
	return w.Scripts.Get(id)
}
