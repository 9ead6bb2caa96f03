package ws

import "github.com/lyric-companion/backend/internal/model"

// Observer receives hub and session events, typically to feed metrics.
// Implementations must be safe for concurrent use.
type Observer interface {
	SessionOpened()
	SessionClosed(reason model.CloseReason)
	FrameIn(kind string)
	FrameOut()
	StateSet()
	ProtocolError()
}

type nopObserver struct{}

func (nopObserver) SessionOpened() {}
func (nopObserver) SessionClosed(_ model.CloseReason) {}
func (nopObserver) FrameIn(_ string) {}
func (nopObserver) FrameOut() {}
func (nopObserver) StateSet() {}
func (nopObserver) ProtocolError() {}
