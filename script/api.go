package script

import (
	"fmt"
	"reflect"

	"github.com/gogpu/gpucontext"

	"github.com/djinn-engine/djinn/ecs"
)

// ImportPath is the package path scripts import to reach the engine.
const ImportPath = "djinn"

// KeyState reports held keys.
type KeyState interface {
	IsKeyPressed(key gpucontext.Key) bool
}

// TextureLoader loads an image file into a named texture.
type TextureLoader interface {
	Load(name, path string) error
}

// SoundPlayer loads and plays named sounds.
type SoundPlayer interface {
	LoadSound(name, path string) error
	PlaySound(name string, volume, pan float64, loops int) error
}

// Host is the engine state reachable from scripts. Nil fields disable the
// functions that need them; those calls log a warning and report failure.
type Host struct {
	World    *ecs.World
	Keys     KeyState
	Textures TextureLoader
	Sounds   SoundPlayer
	Quit     func()
}

// Sprite is the script view of ecs.Sprite, flattened to float64 fields.
// A zero ScaleX or ScaleY is stored as 1, so a literal that leaves the
// scale out draws at unit size.
type Sprite struct {
	Texture        string
	X, Y           float64
	ScaleX, ScaleY float64
	Depth          float64
}

func spriteFromECS(s ecs.Sprite) Sprite {
	return Sprite{
		Texture: s.Texture,
		X:       float64(s.Position[0]),
		Y:       float64(s.Position[1]),
		ScaleX:  float64(s.Scale[0]),
		ScaleY:  float64(s.Scale[1]),
		Depth:   float64(s.Depth),
	}
}

func (s Sprite) ecs() ecs.Sprite {
	out := ecs.NewSprite(s.Texture, float32(s.X), float32(s.Y), float32(s.Depth))
	if s.ScaleX != 0 {
		out.Scale[0] = float32(s.ScaleX)
	}
	if s.ScaleY != 0 {
		out.Scale[1] = float32(s.ScaleY)
	}
	return out
}

// NewSprite returns a unit-scale sprite at the origin.
func NewSprite(texture string) Sprite {
	return spriteFromECS(ecs.NewSprite(texture, 0, 0, 0))
}

// keys exported to scripts as djinn.Key<Name>.
var scriptKeys = map[string]gpucontext.Key{
	"KeySpace":     gpucontext.KeySpace,
	"KeyEnter":     gpucontext.KeyEnter,
	"KeyEscape":    gpucontext.KeyEscape,
	"KeyLeftShift": gpucontext.KeyLeftShift,
	"KeyUp":        gpucontext.KeyUp,
	"KeyDown":      gpucontext.KeyDown,
	"KeyLeft":      gpucontext.KeyLeft,
	"KeyRight":     gpucontext.KeyRight,
	"KeyW":         gpucontext.KeyW,
	"KeyA":         gpucontext.KeyA,
	"KeyS":         gpucontext.KeyS,
	"KeyD":         gpucontext.KeyD,
	"KeyQ":         gpucontext.KeyQ,
}

// api binds the exported script functions to a Host.
type api struct {
	host Host
}

func (a *api) print(args ...any) {
	slogger().Info(fmt.Sprint(args...), "source", "script")
}

func (a *api) isKeyPressed(key gpucontext.Key) bool {
	return a.host.Keys != nil && a.host.Keys.IsKeyPressed(key)
}

func (a *api) loadImage(name, path string) bool {
	if a.host.Textures == nil {
		slogger().Warn("script: no texture cache, image not loaded", "name", name)
		return false
	}
	if err := a.host.Textures.Load(name, path); err != nil {
		slogger().Warn("script: load image failed", "name", name, "path", path, "error", err)
		return false
	}
	return true
}

func (a *api) loadSound(name, path string) bool {
	if a.host.Sounds == nil {
		slogger().Warn("script: audio disabled, sound not loaded", "name", name)
		return false
	}
	if err := a.host.Sounds.LoadSound(name, path); err != nil {
		slogger().Warn("script: load sound failed", "name", name, "path", path, "error", err)
		return false
	}
	return true
}

func (a *api) playSound(name string, volume, pan float64, loops int) bool {
	if a.host.Sounds == nil {
		return false
	}
	if err := a.host.Sounds.PlaySound(name, volume, pan, loops); err != nil {
		slogger().Warn("script: play sound failed", "name", name, "error", err)
		return false
	}
	return true
}

func (a *api) spawn() int {
	if a.host.World == nil {
		return 0
	}
	return int(a.host.World.Spawn())
}

func (a *api) despawn(id int) bool {
	return a.host.World != nil && a.host.World.Despawn(ecs.EntityID(id))
}

func (a *api) setSprite(id int, s Sprite) bool {
	w := a.host.World
	if w == nil || !w.Alive(ecs.EntityID(id)) {
		slogger().Warn("script: set sprite on dead entity", "entity", id)
		return false
	}
	w.Sprites.Set(ecs.EntityID(id), s.ecs())
	return true
}

func (a *api) getSprite(id int) (Sprite, bool) {
	if a.host.World == nil {
		return Sprite{}, false
	}
	s, ok := a.host.World.Sprite(ecs.EntityID(id))
	if !ok {
		return Sprite{}, false
	}
	return spriteFromECS(s), true
}

func (a *api) setScript(id int, fn string) bool {
	w := a.host.World
	if w == nil || !w.Alive(ecs.EntityID(id)) {
		slogger().Warn("script: set script on dead entity", "entity", id)
		return false
	}
	w.Scripts.Set(ecs.EntityID(id), ecs.Script{Function: fn})
	return true
}

func (a *api) quitGame() {
	if a.host.Quit != nil {
		a.host.Quit()
	}
}

// symbols returns the yaegi export table for the djinn package.
func (a *api) symbols() map[string]map[string]reflect.Value {
	pkg := map[string]reflect.Value{
		"Key":    reflect.ValueOf((*gpucontext.Key)(nil)),
		"Sprite": reflect.ValueOf((*Sprite)(nil)),

		"NewSprite": reflect.ValueOf(NewSprite),

		"Print":        reflect.ValueOf(a.print),
		"IsKeyPressed": reflect.ValueOf(a.isKeyPressed),
		"LoadImage":    reflect.ValueOf(a.loadImage),
		"LoadSound":    reflect.ValueOf(a.loadSound),
		"PlaySound":    reflect.ValueOf(a.playSound),
		"Spawn":        reflect.ValueOf(a.spawn),
		"Despawn":      reflect.ValueOf(a.despawn),
		"SetSprite":    reflect.ValueOf(a.setSprite),
		"GetSprite":    reflect.ValueOf(a.getSprite),
		"SetScript":    reflect.ValueOf(a.setScript),
		"QuitGame":     reflect.ValueOf(a.quitGame),
	}
	for name, key := range scriptKeys {
		pkg[name] = reflect.ValueOf(key)
	}
	return map[string]map[string]reflect.Value{
		ImportPath + "/" + ImportPath: pkg,
	}
}
