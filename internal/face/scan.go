package face

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// scanRetention is how long a finished scan stays fetchable before the
// manager forgets it.
const scanRetention = 2 * time.Minute

// Scan is one capture attempt bridged over HTTP: the browser pushes
// frames in, the controller runs server-side, and the result is fetched
// once the attempt settles. Scans are ephemeral and never persisted.
type Scan struct {
	ID     string
	UserID int64

	source     *StreamSource
	controller *Controller

	mu       sync.Mutex
	progress Progress
	result   *Result
	err      error
	done     chan struct{}
}

// ScanStatus is the polling view of a scan.
type ScanStatus struct {
	ID       string   `json:"id"`
	Progress Progress `json:"progress"`
	Done     bool     `json:"done"`
	Result   *Result  `json:"result,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Push feeds one observed frame into the scan.
func (s *Scan) Push(f Frame) bool {
	return s.source.Push(f)
}

// Cancel stops the attempt; the controller releases the stream before it
// settles.
func (s *Scan) Cancel() {
	s.controller.Stop()
}

// Status returns the current snapshot. The result appears only once the
// attempt reached a terminal stage.
func (s *Scan) Status() ScanStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := ScanStatus{
		ID:       s.ID,
		Progress: s.progress,
	}
	select {
	case <-s.done:
		st.Done = true
		st.Result = s.result
		if s.err != nil {
			st.Error = s.err.Error()
		}
	default:
	}
	return st
}

// Result blocks until the attempt settles or the context ends.
func (s *Scan) Result(ctx context.Context) (*Result, error) {
	select {
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.result, s.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Scan) setProgress(p Progress) {
	s.mu.Lock()
	s.progress = p
	s.mu.Unlock()
}

func (s *Scan) finish(result *Result, err error) {
	s.mu.Lock()
	s.result = result
	s.err = err
	s.mu.Unlock()
	close(s.done)
}

// streamCamera hands the controller its pre-attached stream.
type streamCamera struct {
	src *StreamSource
}

func (c streamCamera) Acquire(ctx context.Context) (FrameSource, error) {
	return c.src, nil
}

// ScanManager tracks in-flight scans by id.
type ScanManager struct {
	logger *slog.Logger
	opts   []ControllerOption

	mu    sync.Mutex
	scans map[string]*Scan
}

func NewScanManager(logger *slog.Logger, opts ...ControllerOption) *ScanManager {
	return &ScanManager{
		logger: logger,
		opts:   opts,
		scans:  make(map[string]*Scan),
	}
}

// Begin starts a new scan for the user and runs it to completion in the
// background.
func (m *ScanManager) Begin(userID int64) *Scan {
	src := NewStreamSource()
	scan := &Scan{
		ID:         uuid.New().String(),
		UserID:     userID,
		source:     src,
		controller: NewController(streamCamera{src: src}, m.logger, m.opts...),
		done:       make(chan struct{}),
	}

	m.mu.Lock()
	m.scans[scan.ID] = scan
	m.mu.Unlock()

	go func() {
		result, err := scan.controller.Start(context.Background(), scan.setProgress)
		scan.finish(result, err)
		time.AfterFunc(scanRetention, func() { m.remove(scan.ID) })
	}()

	return scan
}

func (m *ScanManager) Get(id string) (*Scan, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scans[id]
	return s, ok
}

func (m *ScanManager) remove(id string) {
	m.mu.Lock()
	delete(m.scans, id)
	m.mu.Unlock()
}
