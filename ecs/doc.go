// Package ecs is the entity-component store the engine's scripts operate on.
//
// Components live in per-kind tables keyed by entity id. Queries name the
// kinds an entity must carry and visit matching ids in ascending order:
//
//	w := ecs.NewWorld()
//	id := w.Spawn()
//	w.Sprites.Set(id, ecs.NewSprite("player", 0, 0, 0.5))
//	w.ForEach([]string{"sprite"}, func(id ecs.EntityID) {
//	    s, _ := w.Sprite(id)
//	    _ = s
//	})
package ecs
