/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package necroerr defines the closed set of error kinds the session layer
// distinguishes, so callers can discriminate failures with errors.As instead
// of string matching.
package necroerr

import "fmt"

// Kind identifies the category of a session-layer error.
type Kind int

const (
	// KindIO wraps an underlying socket error.
	KindIO Kind = iota
	// KindProtocol indicates a malformed peer frame: length invariants,
	// unknown control opcode, atom overrun.
	KindProtocol
	// KindChannelUnavailable indicates a peer endpoint (worker goroutine,
	// subscriber) dropped its side of a channel.
	KindChannelUnavailable
	// KindTimeout indicates a handshake timeout, liveness failure, or
	// retransmit exhaustion.
	KindTimeout
	// KindUnknownParameter indicates the caller supplied a parameter this
	// library has no mapping for.
	KindUnknownParameter
	// KindParameterOutOfRange indicates the caller supplied a parameter
	// outside of the valid range for the field.
	KindParameterOutOfRange
	// KindInvalidLength indicates a payload length mismatch against a
	// declared or expected size.
	KindInvalidLength
	// KindFeatureUnavailable indicates the switcher reported no
	// capability for the requested operation.
	KindFeatureUnavailable
	// KindNotFound indicates a referenced slot exists but holds no valid
	// data.
	KindNotFound
	// KindDisconnected indicates the peer sent a Disconnect control
	// message.
	KindDisconnected
	// KindMixerOverloaded indicates the peer sent ConnectNack.
	KindMixerOverloaded
	// KindUnexpectedState indicates a control message arrived at the
	// wrong phase, or an internal invariant was violated.
	KindUnexpectedState
	// KindPeerTransferError indicates the file-transfer protocol reported
	// an error with a numeric code; see Error.Code.
	KindPeerTransferError
	// KindUnsupportedFirmwareVersion indicates the peer's Version atom is
	// outside the supported window.
	KindUnsupportedFirmwareVersion
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindProtocol:
		return "protocol"
	case KindChannelUnavailable:
		return "channel_unavailable"
	case KindTimeout:
		return "timeout"
	case KindUnknownParameter:
		return "unknown_parameter"
	case KindParameterOutOfRange:
		return "parameter_out_of_range"
	case KindInvalidLength:
		return "invalid_length"
	case KindFeatureUnavailable:
		return "feature_unavailable"
	case KindNotFound:
		return "not_found"
	case KindDisconnected:
		return "disconnected"
	case KindMixerOverloaded:
		return "mixer_overloaded"
	case KindUnexpectedState:
		return "unexpected_state"
	case KindPeerTransferError:
		return "peer_transfer_error"
	case KindUnsupportedFirmwareVersion:
		return "unsupported_firmware_version"
	default:
		return "unknown"
	}
}

// Error is a session-layer error tagged with a Kind, optionally wrapping an
// underlying cause.
type Error struct {
	Kind Kind
	// Code carries the peer-reported transfer error code when Kind is
	// KindPeerTransferError.
	Code uint8
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Kind == KindPeerTransferError {
		return fmt.Sprintf("%s: code=%d: %s", e.Kind, e.Code, e.Msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, necroerr.New(KindTimeout, "")) match on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an *Error of the given kind with a message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf builds an *Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Transfer builds a KindPeerTransferError carrying the peer's numeric code.
func Transfer(code uint8) *Error {
	return &Error{Kind: KindPeerTransferError, Code: code, Msg: "peer reported file transfer error"}
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error, with ok
// reporting whether one was found.
func KindOf(err error) (Kind, bool) {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if e == nil {
		return 0, false
	}
	return e.Kind, true
}
