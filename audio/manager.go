// Package audio loads named sound clips and mixes them into one output.
package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
)

// DefaultSampleRate is the mixer rate. Clips at other rates are resampled
// on load.
const DefaultSampleRate = beep.SampleRate(44100)

// Audio errors.
var (
	// ErrNotStarted is returned when loading or playing before Startup.
	ErrNotStarted = errors.New("audio: manager not started")

	// ErrSoundNotFound is returned for names that were never loaded.
	ErrSoundNotFound = errors.New("audio: sound not found")

	// ErrUnsupportedFormat is returned for files with an unknown extension.
	ErrUnsupportedFormat = errors.New("audio: unsupported format")
)

// Sound is a decoded clip held in memory.
type Sound struct {
	Name   string
	Path   string
	buffer *beep.Buffer
}

// Duration returns the clip length at the mixer rate.
func (s *Sound) Duration() time.Duration {
	return s.buffer.Format().SampleRate.D(s.buffer.Len())
}

// Option configures a Manager.
type Option func(*Manager)

// WithOutput plays into out instead of the system speaker.
func WithOutput(out Output) Option {
	return func(m *Manager) {
		m.out = out
	}
}

// WithSampleRate sets the mixer rate.
func WithSampleRate(rate int) Option {
	return func(m *Manager) {
		if rate > 0 {
			m.rate = beep.SampleRate(rate)
		}
	}
}

// WithPathResolver maps the paths given to LoadSound to files.
func WithPathResolver(resolve func(string) string) Option {
	return func(m *Manager) {
		m.resolve = resolve
	}
}

// Manager owns the loaded sounds and the mixer.
type Manager struct {
	mu      sync.Mutex
	out     Output
	rate    beep.SampleRate
	resolve func(string) string
	mixer   *beep.Mixer
	sounds  map[string]*Sound
	started bool
}

// New creates a stopped Manager. Call Startup before loading sounds.
func New(opts ...Option) *Manager {
	m := &Manager{
		rate:    DefaultSampleRate,
		mixer:   &beep.Mixer{},
		sounds:  make(map[string]*Sound),
		resolve: func(p string) string { return p },
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.out == nil {
		m.out = Speaker()
	}
	return m
}

// Startup opens the output and starts the mixer.
func (m *Manager) Startup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}
	if err := m.out.Init(m.rate, m.rate.N(100*time.Millisecond)); err != nil {
		return fmt.Errorf("audio: init output: %w", err)
	}
	m.out.Play(m.mixer)
	m.started = true
	slogger().Info("audio: started", "sample_rate", int(m.rate))
	return nil
}

// Shutdown stops playback, releases every sound and closes the output.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		m.out.Lock()
		m.mixer.Clear()
		m.out.Unlock()
		m.out.Close()
		m.started = false
		slogger().Info("audio: stopped")
	}
	clear(m.sounds)
}

// Started reports whether Startup succeeded.
func (m *Manager) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// LoadSound decodes the file at path and stores it under name, replacing
// any sound of the same name. WAV, Ogg Vorbis and MP3 are supported.
func (m *Manager) LoadSound(name, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return ErrNotStarted
	}

	full := m.resolve(path)
	buf, err := m.decodeFile(full)
	if err != nil {
		return fmt.Errorf("audio: load sound %q from %s: %w", name, full, err)
	}
	if _, ok := m.sounds[name]; ok {
		slogger().Warn("audio: sound already exists, overwriting", "name", name)
	}
	m.sounds[name] = &Sound{Name: name, Path: full, buffer: buf}
	slogger().Info("audio: sound loaded", "name", name, "path", full)
	return nil
}

func (m *Manager) decodeFile(path string) (*beep.Buffer, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	var (
		stream beep.StreamSeekCloser
		format beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		stream, format, err = wav.Decode(f)
	case ".ogg":
		stream, format, err = vorbis.Decode(f)
	case ".mp3":
		stream, format, err = mp3.Decode(f)
	default:
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	defer func() { _ = stream.Close() }()
	return m.bufferStream(stream, format)
}

// bufferStream reads s fully into memory at the mixer rate.
func (m *Manager) bufferStream(s beep.Streamer, format beep.Format) (*beep.Buffer, error) {
	var src beep.Streamer = s
	if format.SampleRate != m.rate {
		src = beep.Resample(4, format.SampleRate, m.rate, s)
	}
	format.SampleRate = m.rate
	buf := beep.NewBuffer(format)
	buf.Append(src)
	if err := s.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf, nil
}

// DestroySound releases the sound stored under name. Voices already
// playing it finish normally.
func (m *Manager) DestroySound(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sounds[name]; !ok {
		slogger().Warn("audio: destroying unknown sound", "name", name)
		return fmt.Errorf("%w: %q", ErrSoundNotFound, name)
	}
	delete(m.sounds, name)
	slogger().Info("audio: sound destroyed", "name", name)
	return nil
}

// PlaySound starts a voice of the named sound.
//
// volume is linear with 1 as unity gain and 0 as silence. pan ranges from
// -1 (left) to 1 (right). loops is the number of extra repetitions; a
// negative value repeats until Shutdown.
func (m *Manager) PlaySound(name string, volume, pan float64, loops int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return ErrNotStarted
	}
	snd, ok := m.sounds[name]
	if !ok {
		slogger().Warn("audio: playing unknown sound", "name", name)
		return fmt.Errorf("%w: %q", ErrSoundNotFound, name)
	}

	var voice beep.Streamer = snd.buffer.Streamer(0, snd.buffer.Len())
	switch {
	case loops < 0:
		voice = beep.Loop(-1, snd.buffer.Streamer(0, snd.buffer.Len()))
	case loops > 0:
		voice = beep.Loop(loops+1, snd.buffer.Streamer(0, snd.buffer.Len()))
	}
	voice = &effects.Volume{
		Streamer: voice,
		Base:     2,
		Volume:   math.Log2(max(volume, 1e-9)),
		Silent:   volume <= 0,
	}
	voice = &effects.Pan{Streamer: voice, Pan: max(-1, min(1, pan))}

	m.out.Lock()
	m.mixer.Add(voice)
	m.out.Unlock()
	slogger().Debug("audio: playing sound", "name", name, "volume", volume, "pan", pan, "loops", loops)
	return nil
}

// Sound returns the sound stored under name.
func (m *Manager) Sound(name string) (*Sound, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sounds[name]
	return s, ok
}

// Names returns the loaded sound names in sorted order.
func (m *Manager) Names() []string {
	m.mu.Lock()
	names := make([]string, 0, len(m.sounds))
	for n := range m.sounds {
		names = append(names, n)
	}
	m.mu.Unlock()
	slices.Sort(names)
	return names
}

// Voices returns the number of streams in the mixer. Finished voices are
// removed as the output pulls samples.
func (m *Manager) Voices() int {
	m.out.Lock()
	defer m.out.Unlock()
	return m.mixer.Len()
}
