package observability

import (
	"time"

	"github.com/kestrel-xr/kestrel/pkg/xr"
)

// PumpObserver returns a frame pump observer that feeds the pump metrics.
// Install it on the registry before sessions start.
func PumpObserver() xr.PumpObserver {
	EnsureRegistered()
	return xr.PumpObserver{
		OnTransmit: func(id xr.SessionID, queued time.Duration) {
			RecordFrameTransmit(queued)
		},
		OnRender: func(id xr.SessionID, d time.Duration) {
			RecordFrameRender(d)
		},
		OnWait: func(id xr.SessionID, d time.Duration) {
			RecordFrameWait(d)
		},
		OnState: func(id xr.SessionID, state xr.PumpState) {
			RecordPumpTransition(string(state))
		},
	}
}
