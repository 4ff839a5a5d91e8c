package repo

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindInvalidArgument
	KindStorage
	KindConstraintViolation // a KindStorage whose cause is a uniqueness violation
	KindRuntime
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindStorage:
		return "storage_failure"
	case KindConstraintViolation:
		return "constraint_violation"
	case KindRuntime:
		return "runtime_failure"
	}
	return "unknown"
}

// Sentinels for errors.Is. A constraint violation also matches ErrStorage.
var (
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrInvalidArgument     = &Error{Kind: KindInvalidArgument}
	ErrStorage             = &Error{Kind: KindStorage}
	ErrConstraintViolation = &Error{Kind: KindConstraintViolation}
	ErrRuntime             = &Error{Kind: KindRuntime}
)

type Error struct {
	Kind   Kind
	Op     string
	Entity string
	ID     string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Msg != "":
		b.WriteString(e.Msg)
	case e.Kind == KindNotFound && e.Entity != "":
		fmt.Fprintf(&b, "%s with id=%s not found", e.Entity, e.ID)
	default:
		b.WriteString(e.Kind.String())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return t.Kind == KindStorage && e.Kind == KindConstraintViolation
}

// KindOf reports the kind of err, KindUnknown for nil or foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func notFound(op, entity, id string) error {
	return &Error{Kind: KindNotFound, Op: op, Entity: entity, ID: id}
}

func invalidArgument(op, format string, args ...any) error {
	return &Error{Kind: KindInvalidArgument, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// storageFailure classifies a driver/ORM error. Errors already carrying a kind pass through.
func storageFailure(op, entity string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	kind := KindStorage
	if IsDuplicateKey(err) {
		kind = KindConstraintViolation
	}
	return &Error{Kind: kind, Op: op, Entity: entity, Err: err}
}

// IsDuplicateKey matches translated GORM errors first and falls back to driver messages
// for dialects whose translator misses a code.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation")
}
