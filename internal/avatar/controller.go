// Package avatar owns a loaded avatar model and drives the animation core
// against it once per displayed frame.
package avatar

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/normanking/avatarcore/internal/avatar3d"
	"github.com/normanking/avatarcore/internal/bus"
	"github.com/normanking/avatarcore/internal/logging"
	"github.com/normanking/avatarcore/internal/observe"
)

var ErrAlreadyRunning = errors.New("avatar loop already running")

// Turn is one upstream conversational response. Text is forwarded to
// subscribers and never interpreted.
type Turn struct {
	Emotion string `json:"emotion"`
	Text    string `json:"text"`
}

// FrameSnapshot is an immutable view of one integrated frame.
type FrameSnapshot struct {
	SessionID string
	Sequence  uint64
	Frame     avatar3d.Frame
	Effects   []avatar3d.InteractionEffect
	// Pruned lists effects that completed during this frame.
	Pruned  []int64
	Skipped []string
}

// Options configures a Controller. Zero values are usable.
type Options struct {
	Tuning  avatar3d.Tuning
	Logger  zerolog.Logger
	Bus     *bus.EventBus
	Metrics *observe.Metrics
	// Seed fixes the random sources; 0 seeds from the clock.
	Seed int64
	// Collider enables HandlePointerRay.
	Collider *avatar3d.HeadCollider
}

// Controller is the explicitly constructed owner of the animation state.
// All methods are safe for concurrent use; the model is only written from
// Frame.
type Controller struct {
	mu sync.Mutex

	id        string
	engine    *avatar3d.Engine
	state     avatar3d.CoreState
	effects   *avatar3d.EffectSystem
	committer *avatar3d.Committer
	collider  *avatar3d.HeadCollider

	emotion     avatar3d.Emotion
	speaking    bool
	analyser    avatar3d.FrequencyAnalyser
	pendingTaps int
	// speechStarted latches a start until the next frame so a short
	// utterance between frames still cancels the override.
	speechStarted bool
	seq           uint64

	logger  zerolog.Logger
	bus     *bus.EventBus
	metrics *observe.Metrics
	warned  logging.OnceSet
	onFrame func(FrameSnapshot)

	cancel context.CancelFunc
	done   chan struct{}
	// inFrame is set while the running loop is inside Frame.
	inFrame *atomic.Bool
}

func NewController(model avatar3d.Model, opts Options) *Controller {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	tuning := opts.Tuning
	if tuning == (avatar3d.Tuning{}) {
		tuning = avatar3d.DefaultTuning()
	}
	tuning = tuning.Validate()

	id := uuid.NewString()
	engine := avatar3d.NewEngine(tuning, rand.New(rand.NewSource(seed)))

	return &Controller{
		id:        id,
		engine:    engine,
		state:     engine.InitialState(),
		effects:   avatar3d.NewEffectSystem(tuning.Effects, rand.New(rand.NewSource(seed+1))),
		committer: avatar3d.NewCommitter(model),
		collider:  opts.Collider,
		emotion:   avatar3d.EmotionNeutral,
		logger:    opts.Logger.With().Str("component", "avatar").Str("session", id).Logger(),
		bus:       opts.Bus,
		metrics:   opts.Metrics,
	}
}

func (c *Controller) SessionID() string {
	return c.id
}

// SetOnFrame registers a callback run after every frame, outside the lock.
func (c *Controller) SetOnFrame(fn func(FrameSnapshot)) {
	c.mu.Lock()
	c.onFrame = fn
	c.mu.Unlock()
}

// SetEmotion makes label the authoritative emotion. Unknown labels fall
// back to neutral and are reported once per distinct label.
func (c *Controller) SetEmotion(label string) avatar3d.Emotion {
	emotion, err := avatar3d.ParseEmotion(label)
	if err != nil {
		if c.warned.First("emotion:" + label) {
			c.logger.Warn().Err(err).Str("label", label).Msg("Unknown emotion label, using neutral")
		}
		if c.metrics != nil {
			c.metrics.RecordUnknownEmotion(context.Background(), label)
		}
		c.publish(bus.EventTypeUnknownEmotion, map[string]any{"label": label})
	}

	c.mu.Lock()
	changed := c.emotion != emotion
	c.emotion = emotion
	c.mu.Unlock()

	if changed {
		c.logger.Debug().Str("emotion", string(emotion)).Msg("Emotion changed")
		c.publish(bus.EventTypeEmotionChanged, map[string]any{"emotion": string(emotion)})
	}
	return emotion
}

// ApplyTurn handles a conversational response.
func (c *Controller) ApplyTurn(t Turn) avatar3d.Emotion {
	emotion := c.SetEmotion(t.Emotion)
	c.publish(bus.EventTypeTurnReceived, map[string]any{
		"emotion": string(emotion),
		"text":    t.Text,
	})
	return emotion
}

func (c *Controller) Emotion() avatar3d.Emotion {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.emotion
}

// StartSpeaking marks playback as started. A nil analyser is tolerated;
// the mouth then stays closed.
func (c *Controller) StartSpeaking(analyser avatar3d.FrequencyAnalyser) {
	c.mu.Lock()
	wasSpeaking := c.speaking
	c.speaking = true
	c.analyser = analyser
	if !wasSpeaking {
		c.speechStarted = true
	}
	c.mu.Unlock()

	if analyser == nil && c.warned.First("analyser") {
		c.logger.Warn().Msg("Speaking without an audio analyser, mouth stays closed")
	}
	if wasSpeaking {
		return
	}
	if c.metrics != nil {
		c.metrics.Utterances.Add(context.Background(), 1)
	}
	c.publish(bus.EventTypeSpeakingStarted, nil)
}

// StopSpeaking marks playback as finished or failed.
func (c *Controller) StopSpeaking() {
	c.mu.Lock()
	wasSpeaking := c.speaking
	c.speaking = false
	c.analyser = nil
	c.mu.Unlock()

	if wasSpeaking {
		c.publish(bus.EventTypeSpeakingStopped, nil)
	}
}

func (c *Controller) IsSpeaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

// HandleHeadTap reacts to a pointer hit on the head at world point p. The
// burst spawns immediately; the happy override starts on the next frame.
func (c *Controller) HandleHeadTap(p mgl32.Vec3) int64 {
	c.mu.Lock()
	id := c.effects.Spawn(p)
	c.pendingTaps++
	c.mu.Unlock()

	if c.metrics != nil {
		ctx := context.Background()
		c.metrics.HeadTaps.Add(ctx, 1)
		c.metrics.ActiveEffects.Add(ctx, 1)
	}
	c.publish(bus.EventTypeHeadTap, map[string]any{"effect": id, "point": p})
	return id
}

// HandlePointerRay hit-tests a pointer ray against the configured head
// collider and taps on a hit.
func (c *Controller) HandlePointerRay(origin, dir mgl32.Vec3) (int64, bool) {
	if c.collider == nil {
		return 0, false
	}
	hit, ok := c.collider.IntersectRay(origin, dir)
	if !ok {
		return 0, false
	}
	return c.HandleHeadTap(hit), true
}

// Reset returns to a neutral, silent avatar and resets secondary physics.
// Live effects finish on their own.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.emotion = avatar3d.EmotionNeutral
	c.speaking = false
	c.analyser = nil
	c.pendingTaps = 0
	c.speechStarted = false
	c.state.Override = c.state.Override.Cancel()
	c.committer.ResetPhysics()
	c.mu.Unlock()

	c.logger.Info().Msg("Avatar reset")
	c.publish(bus.EventTypeReset, nil)
}

// UpdateTuning swaps the animation tuning between frames.
func (c *Controller) UpdateTuning(t avatar3d.Tuning) {
	t = t.Validate()
	c.mu.Lock()
	c.engine.SetTuning(t)
	c.effects.SetTuning(t.Effects)
	c.mu.Unlock()

	c.logger.Info().Msg("Animation tuning updated")
	c.publish(bus.EventTypeTuningChanged, nil)
}

func (c *Controller) Tuning() avatar3d.Tuning {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.Tuning()
}

// State returns a copy of the core state.
func (c *Controller) State() avatar3d.CoreState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Effects returns copies of the live interaction effects.
func (c *Controller) Effects() []avatar3d.InteractionEffect {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.effects.Active()
}

// Frame integrates one frame of dt seconds, commits it to the model,
// steps physics and then advances interaction effects.
func (c *Controller) Frame(dt float64) FrameSnapshot {
	c.mu.Lock()

	in := avatar3d.FrameInput{
		DeltaTime:     dt,
		Emotion:       c.emotion,
		Speaking:      c.speaking,
		Analyser:      c.analyser,
		HeadTaps:      c.pendingTaps,
		SpeechStarted: c.speechStarted,
	}
	c.pendingTaps = 0
	c.speechStarted = false

	overrideBefore := c.state.Override.Active
	var frame avatar3d.Frame
	c.state, frame = c.engine.Advance(c.state, in)
	overrideAfter := c.state.Override.Active

	missing := c.committer.Commit(frame.Pose)
	c.committer.StepPhysics(float32(frame.DeltaTime))
	pruned := c.effects.Advance(frame.DeltaTime)

	c.seq++
	snap := FrameSnapshot{
		SessionID: c.id,
		Sequence:  c.seq,
		Frame:     frame,
		Effects:   c.effects.Active(),
		Pruned:    pruned,
	}
	onFrame := c.onFrame
	c.mu.Unlock()

	for _, m := range missing {
		snap.Skipped = append(snap.Skipped, m.Name)
		if c.warned.First("part:" + m.Error()) {
			c.logger.Warn().Err(m).Msg("Model is missing a part, skipping it")
			c.publish(bus.EventTypeMissingModelPart, map[string]any{"part": m.Name, "bone": m.IsBone()})
		}
	}

	c.record(frame, missing, pruned)

	if !overrideBefore && overrideAfter {
		c.publish(bus.EventTypeOverrideStarted, nil)
	} else if overrideBefore && !overrideAfter {
		c.publish(bus.EventTypeOverrideEnded, nil)
	}
	for _, id := range pruned {
		c.publish(bus.EventTypeEffectFinished, map[string]any{"effect": id})
	}

	if onFrame != nil {
		onFrame(snap)
	}
	return snap
}

func (c *Controller) record(frame avatar3d.Frame, missing []*avatar3d.MissingPartError, pruned []int64) {
	if c.metrics == nil {
		return
	}
	ctx := context.Background()
	c.metrics.FrameDelta.Record(ctx, frame.DeltaTime)
	for _, m := range missing {
		kind := "channel"
		if m.IsBone() {
			kind = "bone"
		}
		c.metrics.RecordSkippedCommit(ctx, kind, m.Name)
	}
	if len(pruned) > 0 {
		c.metrics.ActiveEffects.Add(ctx, -int64(len(pruned)))
	}
}

// Start drives Frame from a ticker at fps until ctx is cancelled or Stop
// is called. It is for hosts without their own render callback.
func (c *Controller) Start(ctx context.Context, fps int) error {
	if fps <= 0 {
		fps = 60
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	inFrame := new(atomic.Bool)
	c.cancel, c.done, c.inFrame = cancel, done, inFrame
	c.mu.Unlock()

	c.logger.Info().Int("fps", fps).Msg("Animation loop started")

	go func() {
		defer close(done)
		ticker := time.NewTicker(time.Second / time.Duration(fps))
		defer ticker.Stop()

		last := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if ctx.Err() != nil {
					return
				}
				inFrame.Store(true)
				c.Frame(now.Sub(last).Seconds())
				inFrame.Store(false)
				last = now
			}
		}
	}()
	return nil
}

// Stop halts the loop started by Start and waits for it to exit. It is
// safe to call more than once. While a loop frame is running, which
// includes calls from the frame callback, Stop only cancels; the loop
// exits when that frame returns.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel, done, inFrame := c.cancel, c.done, c.inFrame
	c.cancel, c.done, c.inFrame = nil, nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if !inFrame.Load() {
		<-done
	}
	c.logger.Info().Msg("Animation loop stopped")
}

func (c *Controller) publish(t bus.EventType, data map[string]any) {
	if c.bus == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["session"] = c.id
	c.bus.Publish(bus.Event{Type: t, Data: data})
}
