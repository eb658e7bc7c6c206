package speaker

import (
	"fmt"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// Output is the audio device the sink writes to.
type Output interface {
	SampleRate() beep.SampleRate
	// Init opens the device. It is called before every Play and must be
	// idempotent.
	Init() error
	Play(s beep.Streamer)
	Clear()
	// Lock and Unlock guard streamer state against the device goroutine.
	Lock()
	Unlock()
}

// SpeakerOutput is the system sound card through beep/speaker.
type SpeakerOutput struct {
	rate    beep.SampleRate
	once    sync.Once
	initErr error
}

// NewSpeakerOutput creates an output opened lazily at rate.
func NewSpeakerOutput(rate beep.SampleRate) *SpeakerOutput {
	return &SpeakerOutput{rate: rate}
}

func (o *SpeakerOutput) SampleRate() beep.SampleRate { return o.rate }

func (o *SpeakerOutput) Init() error {
	o.once.Do(func() {
		if err := speaker.Init(o.rate, o.rate.N(100*time.Millisecond)); err != nil {
			o.initErr = fmt.Errorf("init speaker: %w", err)
		}
	})
	return o.initErr
}

func (o *SpeakerOutput) Play(s beep.Streamer) { speaker.Play(s) }
func (o *SpeakerOutput) Clear()               { speaker.Clear() }
func (o *SpeakerOutput) Lock()                { speaker.Lock() }
func (o *SpeakerOutput) Unlock()              { speaker.Unlock() }
