//go:build djinn

// Demo game: a sprite that moves with WASD. Escape quits.
package main

import "djinn"

const (
	speed   = 60.0
	stepGap = 0.25 // seconds between step sounds
)

var (
	player    int
	stepTimer float64
)

func UpdateAllSystems(dt float64) {
	if player == 0 {
		setup()
	}
	if djinn.IsKeyPressed(djinn.KeyEscape) {
		djinn.QuitGame()
	}
}

func setup() {
	if !djinn.LoadImage("player", "images/player.png") {
		djinn.Print("player image missing, nothing to draw")
	}
	djinn.LoadSound("step", "sounds/step.wav")
	player = djinn.Spawn()
	djinn.SetSprite(player, djinn.Sprite{Texture: "player", ScaleX: 10, ScaleY: 10, Depth: 0.5})
	djinn.SetScript(player, "MovePlayer")
	djinn.Print("player spawned as entity ", player)
}

func MovePlayer(id int, dt float64) {
	s, ok := djinn.GetSprite(id)
	if !ok {
		return
	}
	moved := false
	if djinn.IsKeyPressed(djinn.KeyW) {
		s.Y += speed * dt
		moved = true
	}
	if djinn.IsKeyPressed(djinn.KeyS) {
		s.Y -= speed * dt
		moved = true
	}
	if djinn.IsKeyPressed(djinn.KeyA) {
		s.X -= speed * dt
		moved = true
	}
	if djinn.IsKeyPressed(djinn.KeyD) {
		s.X += speed * dt
		moved = true
	}
	stepTimer -= dt
	if moved && djinn.IsKeyPressed(djinn.KeySpace) && stepTimer <= 0 {
		djinn.PlaySound("step", 0.5, 0, 0)
		stepTimer = stepGap
	}
	djinn.SetSprite(id, s)
}
