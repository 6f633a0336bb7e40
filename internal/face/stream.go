package face

import "sync"

// StreamSource adapts frames arriving over the network (the browser posts
// per-frame observations during a scan) into a FrameSource the capture
// controller can consume. Push never blocks the HTTP handler: when the
// controller falls behind, the oldest buffered frame is dropped.
type StreamSource struct {
	mu       sync.Mutex
	frames   chan Frame
	released bool
}

const streamBuffer = 8

func NewStreamSource() *StreamSource {
	return &StreamSource{
		frames: make(chan Frame, streamBuffer),
	}
}

// Push offers a frame to the controller. It reports false once the source
// has been released.
func (s *StreamSource) Push(f Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return false
	}
	for {
		select {
		case s.frames <- f:
			return true
		default:
			select {
			case <-s.frames:
			default:
			}
		}
	}
}

func (s *StreamSource) Frames() <-chan Frame {
	return s.frames
}

// Release stops the stream and closes the frame channel so a consumer
// mid-read observes the shutdown. Safe to call more than once.
func (s *StreamSource) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	close(s.frames)
}

// Released reports whether the camera stream has been shut down.
func (s *StreamSource) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}
