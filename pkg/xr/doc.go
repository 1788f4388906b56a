// Package xr implements session negotiation, creation, and frame
// synchronization between content code and pluggable device backends.
//
// Invariants:
// - Registry discovery/session/mock lists are mutated only on the goroutine
//   that calls MainThreadRegistry.RunOneFrame.
// - Exactly one SessionThread exists per live SessionID, and it terminates
//   only by observing Quit or device frame exhaustion in its own loop.
// - Cross-goroutine coordination is message passing only; Session handles
//   carry an immutable snapshot plus a send endpoint.
//
// Usage:
//
//	frames := make(chan xr.Frame, 64)
//	mtr := xr.NewMainThreadRegistry(frames)
//	mtr.Register(myDiscovery)
//	registry := mtr.Registry()
//	registry.RequestSession(xr.ModeImmersiveVR, xr.SessionInit{}, func(s *xr.Session, err error) {
//		// runs on the registry goroutine during RunOneFrame
//	})
//	mtr.RunOneFrame()
package xr
