package domain

import "errors"

// Call error taxonomy. PermissionDenied and DeviceUnavailable are terminal
// for the attempt and surfaced to the user without retry. RelayUnreachable
// and PeerDisconnected end the session but are not crashes.
var (
	ErrPermissionDenied  = errors.New("media permission denied")
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	ErrUserCancelled     = errors.New("user cancelled capture")
	ErrRelayUnreachable  = errors.New("signaling relay unreachable")
	ErrNegotiationFailed = errors.New("negotiation failed")
	ErrConnectTimeout    = errors.New("connection establishment timed out")
	ErrPeerDisconnected  = errors.New("peer disconnected")

	ErrRoomFull          = errors.New("room is full")
	ErrInterviewNotFound = errors.New("interview not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid interview status transition")
)
