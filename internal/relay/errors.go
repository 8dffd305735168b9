package relay

import "errors"

var (
	// ErrUpstreamUnavailable is returned by Forward when the bridge is not
	// connected to the SFU. The caller gets it synchronously and must not be
	// blocked waiting for a reconnect.
	ErrUpstreamUnavailable = errors.New("sfu not connected")

	// ErrSessionClosed is returned when sending to a session whose connection
	// has gone away.
	ErrSessionClosed = errors.New("session closed")

	// ErrMalformedPayload is returned when a forwarded payload is not a JSON
	// object the bridge can inject routing fields into.
	ErrMalformedPayload = errors.New("malformed payload")
)
