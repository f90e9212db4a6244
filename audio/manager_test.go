package audio

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/wav"
)

// captureOutput keeps the mixer so tests can pull samples from it.
type captureOutput struct {
	mu       sync.Mutex
	rate     beep.SampleRate
	streamer beep.Streamer
	closed   bool
	initErr  error
}

func (o *captureOutput) Init(rate beep.SampleRate, _ int) error {
	o.rate = rate
	return o.initErr
}
func (o *captureOutput) Play(s beep.Streamer) { o.streamer = s }
func (o *captureOutput) Lock()                { o.mu.Lock() }
func (o *captureOutput) Unlock()              { o.mu.Unlock() }
func (o *captureOutput) Close()               { o.closed = true }

// pull streams n samples from the mixer and returns them.
func (o *captureOutput) pull(n int) [][2]float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	buf := make([][2]float64, n)
	o.streamer.Stream(buf)
	return buf
}

// writeTone writes a mono sine tone WAV file and returns its path.
func writeTone(t *testing.T, dir, name string, rate beep.SampleRate, d time.Duration) string {
	t.Helper()
	sine, err := generators.SineTone(rate, 440)
	if err != nil {
		t.Fatalf("SineTone failed: %v", err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	format := beep.Format{SampleRate: rate, NumChannels: 1, Precision: 2}
	if err := wav.Encode(f, beep.Take(rate.N(d), sine), format); err != nil {
		_ = f.Close()
		t.Fatalf("wav.Encode failed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func newStarted(t *testing.T, opts ...Option) (*Manager, *captureOutput) {
	t.Helper()
	out := &captureOutput{}
	m := New(append([]Option{WithOutput(out)}, opts...)...)
	if err := m.Startup(); err != nil {
		t.Fatalf("Startup failed: %v", err)
	}
	t.Cleanup(m.Shutdown)
	return m, out
}

func TestStartupStartsMixer(t *testing.T) {
	m, out := newStarted(t, WithSampleRate(22050))
	if !m.Started() {
		t.Error("Started() = false after Startup")
	}
	if out.rate != 22050 {
		t.Errorf("output rate = %d, want 22050", out.rate)
	}
	if out.streamer == nil {
		t.Error("mixer not handed to output")
	}
	m.Shutdown()
	if !out.closed || m.Started() {
		t.Error("Shutdown did not close the output")
	}
}

func TestStartupError(t *testing.T) {
	boom := errors.New("no device")
	m := New(WithOutput(&captureOutput{initErr: boom}))
	if err := m.Startup(); !errors.Is(err, boom) {
		t.Fatalf("Startup error = %v, want %v", err, boom)
	}
	if err := m.LoadSound("x", "x.wav"); !errors.Is(err, ErrNotStarted) {
		t.Errorf("LoadSound error = %v, want ErrNotStarted", err)
	}
	if err := m.PlaySound("x", 1, 0, 0); !errors.Is(err, ErrNotStarted) {
		t.Errorf("PlaySound error = %v, want ErrNotStarted", err)
	}
}

func TestLoadAndPlay(t *testing.T) {
	dir := t.TempDir()
	writeTone(t, dir, "beep.wav", DefaultSampleRate, 50*time.Millisecond)

	m, out := newStarted(t, WithPathResolver(func(p string) string { return filepath.Join(dir, p) }))
	if err := m.LoadSound("beep", "beep.wav"); err != nil {
		t.Fatalf("LoadSound failed: %v", err)
	}
	snd, ok := m.Sound("beep")
	if !ok {
		t.Fatal("Sound(beep) not found")
	}
	if d := snd.Duration(); d < 45*time.Millisecond || d > 55*time.Millisecond {
		t.Errorf("Duration() = %v, want about 50ms", d)
	}

	if err := m.PlaySound("beep", 1, 0, 0); err != nil {
		t.Fatalf("PlaySound failed: %v", err)
	}
	if m.Voices() != 1 {
		t.Fatalf("Voices() = %d, want 1", m.Voices())
	}
	samples := out.pull(DefaultSampleRate.N(20 * time.Millisecond))
	loud := false
	for _, s := range samples {
		if s[0] != 0 || s[1] != 0 {
			loud = true
			break
		}
	}
	if !loud {
		t.Error("mixer produced silence while a voice was playing")
	}

	// Draining past the clip end removes the voice.
	out.pull(DefaultSampleRate.N(100 * time.Millisecond))
	if m.Voices() != 0 {
		t.Errorf("Voices() = %d after the clip ended, want 0", m.Voices())
	}
}

func TestPlaySilentAndLooping(t *testing.T) {
	dir := t.TempDir()
	path := writeTone(t, dir, "loop.wav", DefaultSampleRate, 10*time.Millisecond)

	m, out := newStarted(t)
	if err := m.LoadSound("loop", path); err != nil {
		t.Fatal(err)
	}
	if err := m.PlaySound("loop", 0, 0, -1); err != nil {
		t.Fatal(err)
	}
	for _, s := range out.pull(DefaultSampleRate.N(30 * time.Millisecond)) {
		if s[0] != 0 || s[1] != 0 {
			t.Fatal("volume 0 produced sound")
		}
	}
	// A looping voice outlives its clip.
	if m.Voices() != 1 {
		t.Errorf("Voices() = %d, want the looping voice to remain", m.Voices())
	}
}

func TestPlayRepeatsLoops(t *testing.T) {
	dir := t.TempDir()
	path := writeTone(t, dir, "tick.wav", DefaultSampleRate, 10*time.Millisecond)

	m, out := newStarted(t)
	if err := m.LoadSound("tick", path); err != nil {
		t.Fatal(err)
	}
	// Two extra repetitions make 30 ms of sound.
	if err := m.PlaySound("tick", 1, 0, 2); err != nil {
		t.Fatal(err)
	}
	out.pull(DefaultSampleRate.N(25 * time.Millisecond))
	if m.Voices() != 1 {
		t.Fatalf("Voices() = %d during the third repetition, want 1", m.Voices())
	}
	out.pull(DefaultSampleRate.N(20 * time.Millisecond))
	if m.Voices() != 0 {
		t.Errorf("Voices() = %d after the repetitions ended, want 0", m.Voices())
	}
}

func TestLoadResamples(t *testing.T) {
	dir := t.TempDir()
	path := writeTone(t, dir, "slow.wav", 22050, 100*time.Millisecond)

	m, _ := newStarted(t)
	if err := m.LoadSound("slow", path); err != nil {
		t.Fatal(err)
	}
	snd, _ := m.Sound("slow")
	if d := snd.Duration(); d < 90*time.Millisecond || d > 110*time.Millisecond {
		t.Errorf("Duration() after resampling = %v, want about 100ms", d)
	}
}

func TestSoundErrors(t *testing.T) {
	dir := t.TempDir()
	m, _ := newStarted(t)

	if err := m.PlaySound("ghost", 1, 0, 0); !errors.Is(err, ErrSoundNotFound) {
		t.Errorf("PlaySound(ghost) error = %v, want ErrSoundNotFound", err)
	}
	if err := m.DestroySound("ghost"); !errors.Is(err, ErrSoundNotFound) {
		t.Errorf("DestroySound(ghost) error = %v, want ErrSoundNotFound", err)
	}
	txt := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txt, []byte("la la"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := m.LoadSound("notes", txt); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("LoadSound(txt) error = %v, want ErrUnsupportedFormat", err)
	}
	if err := m.LoadSound("missing", filepath.Join(dir, "missing.wav")); err == nil {
		t.Error("LoadSound(missing) returned nil error")
	}
}

func TestReplaceAndDestroy(t *testing.T) {
	dir := t.TempDir()
	a := writeTone(t, dir, "a.wav", DefaultSampleRate, 10*time.Millisecond)
	b := writeTone(t, dir, "b.wav", DefaultSampleRate, 20*time.Millisecond)

	m, _ := newStarted(t)
	if err := m.LoadSound("s", a); err != nil {
		t.Fatal(err)
	}
	if err := m.LoadSound("s", b); err != nil {
		t.Fatal(err)
	}
	snd, _ := m.Sound("s")
	if snd.Path != b {
		t.Errorf("Path = %q after replace, want %q", snd.Path, b)
	}
	if err := m.DestroySound("s"); err != nil {
		t.Fatal(err)
	}
	if len(m.Names()) != 0 {
		t.Errorf("Names() = %v after destroy, want none", m.Names())
	}
}

func TestNullOutput(t *testing.T) {
	dir := t.TempDir()
	path := writeTone(t, dir, "n.wav", DefaultSampleRate, 10*time.Millisecond)

	m := New(WithOutput(Null()))
	if err := m.Startup(); err != nil {
		t.Fatalf("Startup failed: %v", err)
	}
	defer m.Shutdown()
	if err := m.LoadSound("n", path); err != nil {
		t.Fatal(err)
	}
	if err := m.PlaySound("n", 1, 0, 0); err != nil {
		t.Errorf("PlaySound on null output = %v", err)
	}
}
