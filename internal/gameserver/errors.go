package gameserver

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bitcory/knight/internal/game/economy"
	"github.com/bitcory/knight/internal/storage/postgres"
)

// Code classifies err for the transports. Unknown errors are Internal.
func Code(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, economy.ErrDailyQuotaExceeded):
		return codes.ResourceExhausted
	case errors.Is(err, economy.ErrOpponentNotFound),
		errors.Is(err, postgres.ErrPlayerNotFound),
		errors.Is(err, postgres.ErrAccountNotFound),
		errors.Is(err, ErrRecipientNotFound):
		return codes.NotFound
	case errors.Is(err, economy.ErrInvalidAmount),
		errors.Is(err, economy.ErrInvalidElement),
		errors.Is(err, economy.ErrInvalidWeaponType),
		errors.Is(err, postgres.ErrInvalidRole),
		errors.Is(err, ErrInvalidUsername),
		errors.Is(err, ErrInvalidPassword),
		errors.Is(err, ErrEmptyMessage),
		errors.Is(err, ErrMessageTooLong):
		return codes.InvalidArgument
	case economy.IsPrecondition(err):
		return codes.FailedPrecondition
	case errors.Is(err, postgres.ErrAccountExists):
		return codes.AlreadyExists
	case errors.Is(err, postgres.ErrInvalidCredentials), errors.Is(err, ErrUnauthenticated):
		return codes.Unauthenticated
	case errors.Is(err, ErrPermissionDenied):
		return codes.PermissionDenied
	case errors.Is(err, postgres.ErrStaleSnapshot):
		return codes.Aborted
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	}
	return codes.Internal
}

// toStatus converts err into a gRPC status. Internal errors are not echoed
// to the client.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	code := Code(err)
	if code == codes.Internal {
		return status.Error(code, "internal error")
	}
	return status.Error(code, err.Error())
}
