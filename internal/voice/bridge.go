package voice

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrSpeechUnavailable is returned by Start when the platform has no speech
// recognition capability.  It is a one-time user-visible notice, not a
// persistent error state.
var ErrSpeechUnavailable = errors.New("speech recognition is not available on this platform")

// Recognizer captures speech.  Recognize performs a single non-continuous
// pass and returns the transcript; it should honor ctx cancellation.
type Recognizer interface {
	Recognize(ctx context.Context) (string, error)
}

// Speaker plays back text.  Speak should return once playback finishes or
// ctx is cancelled.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Bridge wraps the platform speech capabilities behind a capability-checked
// interface.  A successful recognition pass replaces the current text input
// via onTranscript; it never auto-submits.  Playback is fire-and-forget with
// a single global voice channel: starting an utterance cancels the previous
// one.
type Bridge struct {
	rec          Recognizer // nil when the platform lacks the capability
	spk          Speaker    // nil disables playback silently
	onTranscript func(string)
	logger       *zap.Logger

	mu           sync.Mutex
	listening    bool
	listenCancel context.CancelFunc
	speakCancel  context.CancelFunc
}

func NewBridge(rec Recognizer, spk Speaker, onTranscript func(string), logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{rec: rec, spk: spk, onTranscript: onTranscript, logger: logger}
}

// Listening reports whether a recognition pass is in progress.
func (b *Bridge) Listening() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listening
}

// Start begins a single recognition pass.  Returns ErrSpeechUnavailable
// without any state change when no recognizer is present.  Starting while
// already listening is a no-op.  The listening flag clears on natural end,
// explicit Stop, or error.
func (b *Bridge) Start(ctx context.Context) error {
	if b.rec == nil {
		return ErrSpeechUnavailable
	}
	b.mu.Lock()
	if b.listening {
		b.mu.Unlock()
		return nil
	}
	recCtx, cancel := context.WithCancel(ctx)
	b.listening = true
	b.listenCancel = cancel
	b.mu.Unlock()

	go func() {
		text, err := b.rec.Recognize(recCtx)
		b.mu.Lock()
		b.listening = false
		b.listenCancel = nil
		b.mu.Unlock()
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				b.logger.Warn("speech recognition failed", zap.Error(err))
			}
			return
		}
		if recCtx.Err() != nil {
			return
		}
		if b.onTranscript != nil {
			b.onTranscript(text)
		}
	}()
	return nil
}

// Stop cancels any recognition pass in progress.
func (b *Bridge) Stop() {
	b.mu.Lock()
	cancel := b.listenCancel
	b.listening = false
	b.listenCancel = nil
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Speak plays the given text, cancelling any utterance already playing.  At
// most one utterance plays at a time system-wide.
func (b *Bridge) Speak(ctx context.Context, text string) {
	if b.spk == nil {
		return
	}
	b.mu.Lock()
	if b.speakCancel != nil {
		b.speakCancel()
	}
	spkCtx, cancel := context.WithCancel(ctx)
	b.speakCancel = cancel
	b.mu.Unlock()

	go func() {
		if err := b.spk.Speak(spkCtx, text); err != nil && !errors.Is(err, context.Canceled) {
			b.logger.Warn("speech playback failed", zap.Error(err))
		}
	}()
}
