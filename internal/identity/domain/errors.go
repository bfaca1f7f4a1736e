package domain

import (
	"github.com/allisson/covert/internal/errors"
)

// Identity errors.
var (
	// ErrEntityNotFound indicates no entity matches the given id or name.
	ErrEntityNotFound = errors.Wrap(errors.ErrNotFound, "entity not found")

	// ErrEntityAlreadyExists indicates an entity with the same name already exists.
	ErrEntityAlreadyExists = errors.Wrap(errors.ErrConflict, "entity already exists")

	// ErrAliasAlreadyBound indicates the alias is attached to a different entity.
	ErrAliasAlreadyBound = errors.Wrap(errors.ErrConflict, "alias is bound to another entity")
)
