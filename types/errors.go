package types

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is matched by errors caused by bad caller input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnsupportedOperation is matched when an operation does not apply
	// to the kind of updater it was called on.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrRemoteObjectDeleted is matched when a remote object is gone and
	// no replacement could be found.
	ErrRemoteObjectDeleted = errors.New("remote object deleted")
)

// InvalidPolicyError reports an unrecognized UpdatePolicy.
type InvalidPolicyError struct {
	Policy UpdatePolicy
}

func (e *InvalidPolicyError) Error() string {
	return fmt.Sprintf("invalid update policy %d", int(e.Policy))
}

func (e *InvalidPolicyError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// UnsupportedOperationError reports a policy the updater kind cannot honor.
type UnsupportedOperationError struct {
	Policy UpdatePolicy
	Kind   string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s is not supported by %s updaters", e.Policy, e.Kind)
}

func (e *UnsupportedOperationError) Is(target error) bool {
	return target == ErrUnsupportedOperation
}

// DeletedError is returned when a recovering updater lost its remote
// object and the owner could not supply a replacement.
type DeletedError struct {
	Policy UpdatePolicy
}

func (e *DeletedError) Error() string {
	return fmt.Sprintf("remote object deleted during %s refresh and no replacement was found", e.Policy)
}

func (e *DeletedError) Is(target error) bool {
	return target == ErrRemoteObjectDeleted
}
