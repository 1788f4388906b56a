package xr

// LayerID identifies one presentation layer. Layer contents and compositing
// live outside this package; sessions only route layer identifiers to their
// device.
type LayerID string
