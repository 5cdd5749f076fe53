package camera

import "errors"

// Failure taxonomy of a capture session. None of these are fatal: every
// failure leaves the session ready for the next user gesture.
var (
	// ErrPermissionDenied: a required permission is missing; the action aborts.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrAcquisition: the provider could not be acquired (busy, unavailable, cancelled).
	ErrAcquisition = errors.New("camera acquisition failed")
	// ErrBind: no sensor with the requested facing, or the bind transaction faulted.
	ErrBind = errors.New("camera bind failed")
	// ErrRecordingFinalize: the recording ended with an encoder or storage fault.
	ErrRecordingFinalize = errors.New("recording finalized with error")
	// ErrTorchUnavailable: the bound sensor has no flash unit.
	ErrTorchUnavailable = errors.New("flash is not available")
	// ErrPhotoUnavailable: no photo pipeline is bound.
	ErrPhotoUnavailable = errors.New("photo capture is not available")
	// ErrNotBound: the action needs a bound session and there is none.
	ErrNotBound = errors.New("camera is not bound")
	// ErrClosed: the session has been torn down.
	ErrClosed = errors.New("session closed")
)
