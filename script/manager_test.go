package script

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/gpucontext"

	"github.com/djinn-engine/djinn/ecs"
)

type fakeKeys map[gpucontext.Key]bool

func (k fakeKeys) IsKeyPressed(key gpucontext.Key) bool { return k[key] }

type fakeAssets struct {
	images []string
	sounds []string
	played []string
	fail   bool
}

func (f *fakeAssets) Load(name, _ string) error {
	if f.fail {
		return errors.New("decode failed")
	}
	f.images = append(f.images, name)
	return nil
}

func (f *fakeAssets) LoadSound(name, _ string) error {
	f.sounds = append(f.sounds, name)
	return nil
}

func (f *fakeAssets) PlaySound(name string, _, _ float64, _ int) error {
	f.played = append(f.played, name)
	return nil
}

// writeScript writes src under dir and returns its path.
func writeScript(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newManager(t *testing.T, host Host, opts ...Option) *Manager {
	t.Helper()
	m, err := New(host, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return m
}

func TestLoadScriptAndCall(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "math.go", `package main

func Add(a, b int) int { return a + b }
`)
	m := newManager(t, Host{})
	if err := m.LoadScript("math", path); err != nil {
		t.Fatalf("LoadScript failed: %v", err)
	}
	out, err := m.Call("Add", 2, 3)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if len(out) != 1 || out[0] != 5 {
		t.Errorf("Add(2, 3) = %v, want [5]", out)
	}
	if !m.Has("Add") || m.Has("Sub") {
		t.Error("Has() does not match the loaded functions")
	}
	if got := m.Scripts(); len(got) != 1 || got[0] != "math" {
		t.Errorf("Scripts() = %v, want [math]", got)
	}
}

func TestLoadScriptDuplicateIsNoop(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "a.go", "package main\n\nfunc A() int { return 1 }\n")
	m := newManager(t, Host{})
	if err := m.LoadScript("a", path); err != nil {
		t.Fatal(err)
	}
	if err := m.LoadScript("a", filepath.Join(dir, "missing.go")); err != nil {
		t.Errorf("second LoadScript = %v, want nil", err)
	}
}

func TestLoadScriptErrors(t *testing.T) {
	dir := t.TempDir()
	broken := writeScript(t, dir, "broken.go", "package main\n\nfunc Oops( {\n")

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "nope.go")},
		{"syntax error", broken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newManager(t, Host{})
			err := m.LoadScript("s", tt.path)
			if !errors.Is(err, ErrScriptNotLoaded) {
				t.Errorf("LoadScript error = %v, want ErrScriptNotLoaded", err)
			}
			if len(m.Scripts()) != 0 {
				t.Error("failed script was recorded")
			}
		})
	}
}

func TestCallErrors(t *testing.T) {
	m := newManager(t, Host{})
	for _, name := range []string{"Undefined", "os.Exit(1)", ""} {
		if _, err := m.Call(name); !errors.Is(err, ErrFunctionNotFound) {
			t.Errorf("Call(%q) error = %v, want ErrFunctionNotFound", name, err)
		}
	}
}

func TestCallRecoversPanic(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "boom.go", "package main\n\nfunc Boom() { panic(\"boom\") }\n")
	m := newManager(t, Host{})
	if err := m.LoadScript("boom", path); err != nil {
		t.Fatal(err)
	}
	_, err := m.Call("Boom")
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("Call(Boom) error = %v, want the panic value", err)
	}
}

const entitySource = `package main

import "djinn"

func Setup() int {
	id := djinn.Spawn()
	djinn.SetSprite(id, djinn.Sprite{Texture: "hero", X: 1, Y: 2, ScaleX: 1, ScaleY: 1, Depth: 0.5})
	djinn.SetScript(id, "Walk")
	return id
}

func Walk(id int, dt float64) {
	s, ok := djinn.GetSprite(id)
	if !ok {
		return
	}
	if djinn.IsKeyPressed(djinn.KeyD) {
		s.X += 60 * dt
	}
	djinn.SetSprite(id, s)
}

func Boom(id int, dt float64) { panic("boom") }
`

func TestUpdateScriptSystem(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "entity.go", entitySource)
	world := ecs.NewWorld()
	keys := fakeKeys{gpucontext.KeyD: true}
	m := newManager(t, Host{World: world, Keys: keys})
	if err := m.LoadScript("entity", path); err != nil {
		t.Fatalf("LoadScript failed: %v", err)
	}

	// An earlier entity whose script panics must not stop the walker.
	bad := world.Spawn()
	world.Scripts.Set(bad, ecs.Script{Function: "Boom"})
	ghost := world.Spawn()
	world.Scripts.Set(ghost, ecs.Script{Function: "NotDefined"})

	out, err := m.Call("Setup")
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	id := ecs.EntityID(out[0].(int))
	if s, ok := world.Sprite(id); !ok || s.Texture != "hero" || s.Depth != 0.5 {
		t.Fatalf("Sprite(%d) = %+v, %v", id, s, ok)
	}

	m.UpdateScriptSystem(0.5)
	s, _ := world.Sprite(id)
	if s.Position[0] != 31 || s.Position[1] != 2 {
		t.Errorf("Position after one tick = %v, want [31 2]", s.Position)
	}
}

func TestUpdateRunsEntry(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "main.go", `//go:build djinn

package main

var total float64

func UpdateAllSystems(dt float64) { total += dt }

func Total() float64 { return total }
`)
	m := newManager(t, Host{World: ecs.NewWorld()})
	if err := m.LoadScript("main", path); err != nil {
		t.Fatal(err)
	}
	m.Update(0.25)
	m.Update(0.25)
	out, err := m.Call("Total")
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != 0.5 {
		t.Errorf("Total() = %v, want 0.5", out[0])
	}
}

func TestEngineAPI(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	defer SetLogger(nil)

	dir := t.TempDir()
	path := writeScript(t, dir, "api.go", `package main

import "djinn"

func Run() bool {
	djinn.Print("hello ", 42)
	ok := djinn.LoadImage("hero", "hero.png")
	ok = djinn.LoadSound("jump", "jump.wav") && ok
	ok = djinn.PlaySound("jump", 1, 0, 0) && ok
	djinn.QuitGame()
	return ok
}
`)
	assets := &fakeAssets{}
	quit := false
	m := newManager(t, Host{
		World:    ecs.NewWorld(),
		Textures: assets,
		Sounds:   assets,
		Quit:     func() { quit = true },
	})
	if err := m.LoadScript("api", path); err != nil {
		t.Fatal(err)
	}
	out, err := m.Call("Run")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out[0] != true {
		t.Error("Run() = false, want every call to succeed")
	}
	if !quit {
		t.Error("QuitGame did not reach the host")
	}
	if len(assets.images) != 1 || len(assets.sounds) != 1 || len(assets.played) != 1 {
		t.Errorf("assets = %+v", assets)
	}
	log := buf.String()
	if !strings.Contains(log, "hello 42") || !strings.Contains(log, "source=script") {
		t.Errorf("Print log = %q", log)
	}
}

func TestSetSpriteDefaultsScale(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "sprites.go", `package main

import "djinn"

func Make() (int, int, int) {
	a := djinn.Spawn()
	djinn.SetSprite(a, djinn.Sprite{Texture: "hero", Depth: 0.5})
	b := djinn.Spawn()
	s := djinn.NewSprite("hero")
	s.X = 4
	djinn.SetSprite(b, s)
	c := djinn.Spawn()
	djinn.SetSprite(c, djinn.Sprite{Texture: "hero", ScaleX: 3})
	return a, b, c
}
`)
	world := ecs.NewWorld()
	m := newManager(t, Host{World: world})
	if err := m.LoadScript("sprites", path); err != nil {
		t.Fatal(err)
	}
	out, err := m.Call("Make")
	if err != nil {
		t.Fatalf("Make failed: %v", err)
	}

	tests := []struct {
		name  string
		id    int
		scale [2]float32
	}{
		{"literal without scale", out[0].(int), [2]float32{1, 1}},
		{"constructor", out[1].(int), [2]float32{1, 1}},
		{"partial scale", out[2].(int), [2]float32{3, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := world.Sprite(ecs.EntityID(tt.id))
			if !ok {
				t.Fatal("sprite not stored")
			}
			if s.Scale != tt.scale {
				t.Errorf("Scale = %v, want %v", s.Scale, tt.scale)
			}
		})
	}
	if s, _ := world.Sprite(ecs.EntityID(out[1].(int))); s.Position[0] != 4 {
		t.Errorf("constructor sprite X = %v, want 4", s.Position[0])
	}
}

func TestDemoScriptThrottlesStepSound(t *testing.T) {
	assets := &fakeAssets{}
	world := ecs.NewWorld()
	keys := fakeKeys{gpucontext.KeyD: true, gpucontext.KeySpace: true}
	m := newManager(t, Host{World: world, Keys: keys, Textures: assets, Sounds: assets})
	if err := m.LoadScript("main", filepath.Join("..", "assets", "scripts", "main.go")); err != nil {
		t.Fatalf("LoadScript failed: %v", err)
	}

	const dt = 1.0 / 60
	for range 60 {
		m.Update(dt)
	}
	if n := len(assets.played); n == 0 || n > 5 {
		t.Errorf("step sound played %d times in one second, want 1 to 5", n)
	}

	var moved bool
	world.ForEach([]string{string(ecs.KindSprite)}, func(id ecs.EntityID) {
		s, _ := world.Sprite(id)
		moved = s.Position[0] > 0 && s.Scale == [2]float32{10, 10}
	})
	if !moved {
		t.Error("player sprite did not move right")
	}
}

func TestEngineAPIWithoutHost(t *testing.T) {
	a := &api{}
	if a.spawn() != 0 || a.despawn(1) || a.setSprite(1, Sprite{}) || a.setScript(1, "F") {
		t.Error("world functions succeeded without a world")
	}
	if a.loadImage("x", "x.png") || a.loadSound("x", "x.wav") || a.playSound("x", 1, 0, 0) {
		t.Error("asset functions succeeded without a host")
	}
	if a.isKeyPressed(gpucontext.KeyW) {
		t.Error("isKeyPressed true without a key source")
	}
	a.quitGame()

	a.host.Textures = &fakeAssets{fail: true}
	if a.loadImage("x", "x.png") {
		t.Error("loadImage reported success on a failed load")
	}
}
