// Package scope parses sync scope tokens and resolves them to tenants.
//
// The grammar is:
//
//	school:<int>       one tenant by id
//	district:<string>  every active tenant of a district
//	all                every active tenant
package scope

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the kind of a Scope
type Kind int

const (
	// KindTenant addresses a single tenant
	KindTenant Kind = iota
	// KindGroup addresses the tenants of a district
	KindGroup
	// KindAll addresses every tenant
	KindAll
)

const (
	tenantPrefix = "school"
	groupPrefix  = "district"
	allToken     = "all"
)

// String returns the token prefix of the kind
func (k Kind) String() string {
	switch k {
	case KindTenant:
		return tenantPrefix
	case KindGroup:
		return groupPrefix
	default:
		return allToken
	}
}

// Scope is the unit of work of a sync run
type Scope struct {
	Kind     Kind
	TenantID int64
	GroupID  string
}

// Tenant returns the scope of a single tenant
func Tenant(id int64) Scope {
	return Scope{Kind: KindTenant, TenantID: id}
}

// Group returns the scope of a district
func Group(id string) Scope {
	return Scope{Kind: KindGroup, GroupID: id}
}

// All returns the scope of every tenant
func All() Scope {
	return Scope{Kind: KindAll}
}

// Key returns the canonical token, which is also the scope's lock key
func (s Scope) Key() string {
	switch s.Kind {
	case KindTenant:
		return tenantPrefix + ":" + strconv.FormatInt(s.TenantID, 10)
	case KindGroup:
		return groupPrefix + ":" + s.GroupID
	default:
		return allToken
	}
}

func (s Scope) String() string {
	return s.Key()
}

// Code classifies scope errors
type Code string

const (
	// CodeInvalidScope means the token is malformed
	CodeInvalidScope Code = "InvalidScope"
	// CodeScopeNotFound means the token names no known, active tenant
	CodeScopeNotFound Code = "ScopeNotFound"
)

var (
	// ErrInvalidScope matches any *Error with CodeInvalidScope
	ErrInvalidScope = errors.New("invalid scope")
	// ErrScopeNotFound matches any *Error with CodeScopeNotFound
	ErrScopeNotFound = errors.New("scope not found")
)

// Error is returned when a scope token cannot be parsed or resolved
type Error struct {
	Code   Code
	Token  string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %q: %s", e.Code, e.Token, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the sentinel for the error's code
func (e *Error) Is(target error) bool {
	switch e.Code {
	case CodeInvalidScope:
		return target == ErrInvalidScope
	case CodeScopeNotFound:
		return target == ErrScopeNotFound
	}
	return false
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

func invalid(token, reason string) error {
	return &Error{Code: CodeInvalidScope, Token: token, Reason: reason}
}

// Parse parses a scope token. Surrounding whitespace is ignored and the
// prefixes are case-insensitive.
func Parse(token string) (Scope, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Scope{}, invalid(token, "empty token")
	}
	if strings.EqualFold(trimmed, allToken) {
		return All(), nil
	}

	prefix, value, ok := strings.Cut(trimmed, ":")
	if !ok {
		return Scope{}, invalid(token, "expected school:<id>, district:<id> or all")
	}
	value = strings.TrimSpace(value)

	switch strings.ToLower(strings.TrimSpace(prefix)) {
	case tenantPrefix:
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil || id <= 0 {
			return Scope{}, invalid(token, "school id must be a positive integer")
		}
		return Tenant(id), nil
	case groupPrefix:
		if value == "" {
			return Scope{}, invalid(token, "district id is required")
		}
		return Group(value), nil
	default:
		return Scope{}, invalid(token, fmt.Sprintf("unknown scope kind %q", prefix))
	}
}
