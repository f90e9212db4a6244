package audio

import (
	"sync"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
)

// Output is the device the mixer plays into.
type Output interface {
	Init(rate beep.SampleRate, bufferSize int) error
	Play(s beep.Streamer)
	Lock()
	Unlock()
	Close()
}

// Speaker returns the system audio output.
func Speaker() Output { return speakerOutput{} }

type speakerOutput struct{}

func (speakerOutput) Init(rate beep.SampleRate, bufferSize int) error {
	return speaker.Init(rate, bufferSize)
}
func (speakerOutput) Play(s beep.Streamer) { speaker.Play(s) }
func (speakerOutput) Lock()                { speaker.Lock() }
func (speakerOutput) Unlock()              { speaker.Unlock() }
func (speakerOutput) Close()               { speaker.Close() }

// Null returns an output that accepts streams and never plays them.
// Used when audio is disabled and in headless runs.
func Null() Output { return &nullOutput{} }

type nullOutput struct {
	mu sync.Mutex
}

func (*nullOutput) Init(beep.SampleRate, int) error { return nil }
func (*nullOutput) Play(beep.Streamer)              {}
func (o *nullOutput) Lock()                         { o.mu.Lock() }
func (o *nullOutput) Unlock()                       { o.mu.Unlock() }
func (*nullOutput) Close()                          {}
