package fetch

import (
	"errors"

	"github.com/sadopc/opsdeck/internal/store"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindAuth
	KindNotFound
	KindValidation
	KindQuery
)

// Error is what presentation sees instead of the raw store error.
type Error struct {
	Kind    Kind
	Title   string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Normalize converts an accessor error into a human-readable Error. what
// names the collection being loaded.
func Normalize(what string, err error) *Error {
	if err == nil {
		return nil
	}
	title := "Failed to load " + what

	var qe *store.QueryError
	var ve *store.ValidationError
	switch {
	case errors.Is(err, store.ErrAuthRequired):
		return &Error{Kind: KindAuth, Title: "Authentication required", Message: "Sign in to load " + what + "."}
	case errors.Is(err, store.ErrForbidden):
		return &Error{Kind: KindAuth, Title: "Not allowed", Message: "You do not have access to " + what + "."}
	case errors.Is(err, store.ErrNotFound):
		return &Error{Kind: KindNotFound, Title: title, Message: capitalize(what) + " not found."}
	case errors.As(err, &ve):
		return &Error{Kind: KindValidation, Title: title, Message: ve.Error()}
	case errors.As(err, &qe):
		return &Error{Kind: KindQuery, Title: title, Message: qe.Err.Error()}
	}
	return &Error{Kind: KindUnknown, Title: title, Message: err.Error()}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
