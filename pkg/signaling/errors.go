package signaling

import (
	"context"
	"errors"

	apperrors "github.com/LingByte/TutorConnect/pkg/errors"
)

var (
	ErrInvalidMessage = errors.New("invalid message")
	ErrUnknownType    = errors.New("unknown message type")
	ErrMissingRoom    = errors.New("missing room")
	ErrMissingBody    = errors.New("missing body")
	ErrRoomNotFound   = errors.New("room not found")
	ErrHubClosed      = errors.New("hub closed")
)

var (
	ErrInvalidMessageApp = apperrors.NewAppError(apperrors.ErrCodeInvalidMessage, "Invalid message")
	ErrUnknownTypeApp    = apperrors.NewAppError(apperrors.ErrCodeUnknownType, "Unknown message type")
	ErrMissingRoomApp    = apperrors.NewAppError(apperrors.ErrCodeMissingField, "Room is required").WithDetails("field", "room")
	ErrMissingBodyApp    = apperrors.NewAppError(apperrors.ErrCodeMissingField, "Message body is required").WithDetails("field", "body")
	ErrRoomNotFoundApp   = apperrors.NewAppError(apperrors.ErrCodeRoomNotFound, "Room not found")
	ErrHubClosedApp      = apperrors.NewAppError(apperrors.ErrCodeUnavailable, "Signaling hub is shutting down")
)

// ToAppError maps signaling errors onto the application error codes.
func ToAppError(err error) *apperrors.AppError {
	switch {
	case errors.Is(err, ErrMissingRoom):
		return ErrMissingRoomApp.WithCause(err)
	case errors.Is(err, ErrMissingBody):
		return ErrMissingBodyApp.WithCause(err)
	case errors.Is(err, ErrUnknownType):
		return ErrUnknownTypeApp.WithCause(err)
	case errors.Is(err, ErrInvalidMessage):
		return ErrInvalidMessageApp.WithCause(err)
	case errors.Is(err, ErrRoomNotFound):
		return ErrRoomNotFoundApp
	case errors.Is(err, ErrHubClosed), errors.Is(err, context.Canceled):
		return ErrHubClosedApp.WithCause(err)
	default:
		return apperrors.WrapError(apperrors.ErrCodeInternal, err)
	}
}

// dropReason is the metrics label for a rejected inbound frame.
func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingRoom):
		return "missing_room"
	case errors.Is(err, ErrMissingBody):
		return "missing_body"
	case errors.Is(err, ErrUnknownType):
		return "unknown_type"
	default:
		return "malformed"
	}
}
