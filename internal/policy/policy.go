// Package policy decides whether a caller may perform an operation on a resource.
package policy

import (
	"blog/pkg/customerrors"

	"github.com/google/uuid"
)

type Operation string

const (
	List     Operation = "list"
	Retrieve Operation = "retrieve"
	Create   Operation = "create"
	Update   Operation = "update"
	Delete   Operation = "delete"
)

func (op Operation) IsRead() bool {
	return op == List || op == Retrieve
}

type Kind string

const (
	Category Kind = "category"
	Post     Kind = "post"
	Comment  Kind = "comment"
)

type Decision int

const (
	Allow Decision = iota
	DenyAnonymous
	DenyNotOwner
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case DenyAnonymous:
		return "anonymous"
	case DenyNotOwner:
		return "not_owner"
	default:
		return "unknown"
	}
}

// Err converts a decision into the error returned to the caller, nil for Allow.
func (d Decision) Err() error {
	switch d {
	case DenyAnonymous:
		return customerrors.ErrUnauthorized
	case DenyNotOwner:
		return customerrors.ErrForbidden
	default:
		return nil
	}
}

// Policy holds the authorization rules. uuid.Nil stands for an anonymous caller
// and for a resource without an owner.
type Policy struct {
	OwnerOnlyWrites bool
}

func New(ownerOnlyWrites bool) Policy {
	return Policy{OwnerOnlyWrites: ownerOnlyWrites}
}

// Decide applies the rules: reads are open to everyone, writes need an
// authenticated caller, and with OwnerOnlyWrites update/delete of an owned
// resource need the caller to be its owner.
func (p Policy) Decide(op Operation, kind Kind, owner, caller uuid.UUID) Decision {
	if op.IsRead() {
		return Allow
	}
	if caller == uuid.Nil {
		return DenyAnonymous
	}
	if p.OwnerOnlyWrites && (op == Update || op == Delete) && kind != Category && owner != caller {
		return DenyNotOwner
	}
	return Allow
}
