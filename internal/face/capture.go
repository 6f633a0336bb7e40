package face

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Stage is the capture state machine position. A capture attempt runs
// idle → initializing → detecting → analyzing → processing → complete,
// with failed reachable from every non-terminal stage.
type Stage string

const (
	StageIdle         Stage = "idle"
	StageInitializing Stage = "initializing"
	StageDetecting    Stage = "detecting"
	StageAnalyzing    Stage = "analyzing"
	StageProcessing   Stage = "processing"
	StageComplete     Stage = "complete"
	StageFailed       Stage = "failed"
)

// FailReason is the typed reason a capture attempt failed. Device reasons
// are surfaced verbatim to the user since they are actionable.
type FailReason string

const (
	FailPermissionDenied FailReason = "permission_denied"
	FailNotFound         FailReason = "not_found"
	FailNotReadable      FailReason = "not_readable"
	FailUnsupported      FailReason = "unsupported"
	FailTimeout          FailReason = "timeout"
	FailNoFace           FailReason = "no_face"
	FailCanceled         FailReason = "canceled"
)

// DeviceError is returned by Camera implementations when the device
// cannot be acquired.
type DeviceError struct {
	Reason FailReason
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("camera device error: %s", e.Reason)
}

// CaptureError is the typed failure of one capture attempt.
type CaptureError struct {
	Reason FailReason
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture failed: %s", e.Reason)
}

// ErrScanInFlight rejects a second Start while a capture is running. One
// controller owns at most one open camera stream.
var ErrScanInFlight = errors.New("a scan is already in flight")

// QualityMetrics scores one frame on three axes, each in [0, 1].
type QualityMetrics struct {
	Lighting  float64 `json:"lighting"`
	Stability float64 `json:"stability"`
	Clarity   float64 `json:"clarity"`
}

// Average collapses the three axes into the single gate value.
func (q QualityMetrics) Average() float64 {
	return (q.Lighting + q.Stability + q.Clarity) / 3
}

// MinCaptureQuality is the window-average quality below which a result is
// flagged low-quality. The controller still emits the result; the
// enroll/verify boundary is responsible for rejecting it.
const MinCaptureQuality = 0.6

type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Observation is one localized face in a frame, with its quality sample
// and extracted descriptor.
type Observation struct {
	Box        BoundingBox
	Landmarks  []Point
	Quality    QualityMetrics
	Descriptor Descriptor
	Confidence int
}

// Frame is one camera frame. Face is nil when no face was localized.
type Frame struct {
	Face *Observation
}

// Camera is the device collaborator. Acquire failures should be typed
// *DeviceError; anything else is treated as not_readable.
type Camera interface {
	Acquire(ctx context.Context) (FrameSource, error)
}

// FrameSource is an open camera stream. Release must be safe to call
// exactly once and must stop the underlying device.
type FrameSource interface {
	Frames() <-chan Frame
	Release()
}

// Progress is emitted to the caller as the attempt advances.
type Progress struct {
	Stage     Stage          `json:"stage"`
	Percent   int            `json:"progress"`
	Box       *BoundingBox   `json:"box,omitempty"`
	Landmarks []Point        `json:"landmarks,omitempty"`
	Quality   QualityMetrics `json:"quality"`
}

// Result is the product of a completed capture. LowQuality marks a result
// whose window-average quality missed the gate; callers must not enroll
// or verify with it.
type Result struct {
	Descriptor Descriptor     `json:"descriptor"`
	Confidence int            `json:"confidence"`
	Quality    QualityMetrics `json:"quality"`
	LowQuality bool           `json:"low_quality"`
}

const (
	defaultAnalyzeWindow = 2 * time.Second
	defaultDetectTimeout = 10 * time.Second
)

// Controller owns the camera lifecycle for one capture flow. It is
// single-flight: Start while an attempt is running returns
// ErrScanInFlight. The camera is released on every exit path — completion,
// failure, and cancellation alike — before the controller reaches a
// terminal stage.
type Controller struct {
	camera        Camera
	analyzeWindow time.Duration
	detectTimeout time.Duration
	logger        *slog.Logger

	mu     sync.Mutex
	stage  Stage
	cancel context.CancelFunc
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithAnalyzeWindow overrides the quality-sampling window.
func WithAnalyzeWindow(d time.Duration) ControllerOption {
	return func(c *Controller) { c.analyzeWindow = d }
}

// WithDetectTimeout overrides how long detection waits for a first face.
func WithDetectTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) { c.detectTimeout = d }
}

func NewController(camera Camera, logger *slog.Logger, opts ...ControllerOption) *Controller {
	c := &Controller{
		camera:        camera,
		analyzeWindow: defaultAnalyzeWindow,
		detectTimeout: defaultDetectTimeout,
		logger:        logger,
		stage:         StageIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stage returns the current state machine position.
func (c *Controller) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

// Stop cancels an in-flight attempt. The attempt observes the
// cancellation, releases the camera, and settles in the failed stage.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Start runs one capture attempt to a terminal stage and returns its
// result. It blocks until complete, failed, or canceled.
func (c *Controller) Start(ctx context.Context, onProgress func(Progress)) (*Result, error) {
	c.mu.Lock()
	switch c.stage {
	case StageIdle, StageComplete, StageFailed:
		// A finished attempt may be restarted.
	default:
		c.mu.Unlock()
		return nil, ErrScanInFlight
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.stage = StageInitializing
	c.mu.Unlock()
	defer cancel()

	if onProgress == nil {
		onProgress = func(Progress) {}
	}

	result, err := c.run(ctx, onProgress)

	c.mu.Lock()
	if err != nil {
		c.stage = StageFailed
	} else {
		c.stage = StageComplete
	}
	c.cancel = nil
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("capture failed", "error", err)
		return nil, err
	}
	return result, nil
}

func (c *Controller) run(ctx context.Context, onProgress func(Progress)) (*Result, error) {
	onProgress(Progress{Stage: StageInitializing})

	src, err := c.camera.Acquire(ctx)
	if err != nil {
		var de *DeviceError
		if errors.As(err, &de) {
			return nil, &CaptureError{Reason: de.Reason}
		}
		if errors.Is(err, context.Canceled) {
			return nil, &CaptureError{Reason: FailCanceled}
		}
		return nil, &CaptureError{Reason: FailNotReadable}
	}
	// The camera is exclusively owned by this attempt; release on every
	// exit path before the controller settles in a terminal stage.
	defer src.Release()

	first, err := c.detect(ctx, src, onProgress)
	if err != nil {
		return nil, err
	}

	best, windowAvg, err := c.analyze(ctx, src, first, onProgress)
	if err != nil {
		return nil, err
	}

	c.setStage(StageProcessing)
	onProgress(Progress{Stage: StageProcessing, Percent: 100, Quality: windowAvg})

	return &Result{
		Descriptor: best.Descriptor,
		Confidence: best.Confidence,
		Quality:    windowAvg,
		LowQuality: windowAvg.Average() < MinCaptureQuality,
	}, nil
}

// detect waits for the first frame containing a face.
func (c *Controller) detect(ctx context.Context, src FrameSource, onProgress func(Progress)) (*Observation, error) {
	c.setStage(StageDetecting)
	onProgress(Progress{Stage: StageDetecting})

	timeout := time.NewTimer(c.detectTimeout)
	defer timeout.Stop()

	for {
		select {
		case frame, ok := <-src.Frames():
			if !ok {
				return nil, &CaptureError{Reason: FailNotReadable}
			}
			if frame.Face != nil {
				return frame.Face, nil
			}
		case <-timeout.C:
			return nil, &CaptureError{Reason: FailTimeout}
		case <-ctx.Done():
			return nil, &CaptureError{Reason: FailCanceled}
		}
	}
}

// analyze samples quality for the bounded window, retaining the best
// observation and accumulating the window-average metrics.
func (c *Controller) analyze(ctx context.Context, src FrameSource, first *Observation, onProgress func(Progress)) (*Observation, QualityMetrics, error) {
	c.setStage(StageAnalyzing)
	start := time.Now()

	window := time.NewTimer(c.analyzeWindow)
	defer window.Stop()

	best := first
	var sum QualityMetrics
	sampled := 0
	addSample := func(o *Observation) {
		sum.Lighting += o.Quality.Lighting
		sum.Stability += o.Quality.Stability
		sum.Clarity += o.Quality.Clarity
		sampled++
		if o.Quality.Average() > best.Quality.Average() {
			best = o
		}
	}
	addSample(first)

	for {
		select {
		case frame, ok := <-src.Frames():
			if !ok {
				return nil, QualityMetrics{}, &CaptureError{Reason: FailNotReadable}
			}
			if frame.Face == nil {
				continue
			}
			addSample(frame.Face)
			pct := int(time.Since(start) * 100 / c.analyzeWindow)
			if pct > 100 {
				pct = 100
			}
			onProgress(Progress{
				Stage:     StageAnalyzing,
				Percent:   pct,
				Box:       &frame.Face.Box,
				Landmarks: frame.Face.Landmarks,
				Quality:   frame.Face.Quality,
			})
		case <-window.C:
			if sampled == 0 {
				return nil, QualityMetrics{}, &CaptureError{Reason: FailNoFace}
			}
			avg := QualityMetrics{
				Lighting:  sum.Lighting / float64(sampled),
				Stability: sum.Stability / float64(sampled),
				Clarity:   sum.Clarity / float64(sampled),
			}
			return best, avg, nil
		case <-ctx.Done():
			return nil, QualityMetrics{}, &CaptureError{Reason: FailCanceled}
		}
	}
}

func (c *Controller) setStage(s Stage) {
	c.mu.Lock()
	c.stage = s
	c.mu.Unlock()
}
