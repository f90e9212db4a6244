//go:build !nogpu

package gpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"
)

//go:embed shaders/sprite.wgsl
var spriteShaderSource string

// SpriteShaderSource returns the WGSL source of the sprite shader.
func SpriteShaderSource() string { return spriteShaderSource }

// ValidateShader compiles the sprite shader to SPIR-V with naga and
// returns the first error, wrapped in ErrInvalidShader.
func ValidateShader() error {
	if spriteShaderSource == "" {
		return fmt.Errorf("%w: empty source", ErrInvalidShader)
	}
	if _, err := naga.Compile(spriteShaderSource); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidShader, err)
	}
	return nil
}
