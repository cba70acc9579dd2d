// Package errs defines the structured error kinds shared by the lexer,
// parser, interpreter, store, and SQL generator.
package errs

import (
	"errors"
	"fmt"

	"github.com/cyphersql/cyphersql/token"
)

// Sentinel causes used with errors.Is. Concrete errors below wrap these
// so callers can branch on kind without string-matching messages.
var (
	// ErrNotFound is the sentinel behind every NotFoundError.
	ErrNotFound = errors.New("errs: not found")
	// ErrType is the sentinel behind every TypeError.
	ErrType = errors.New("errs: type error")
	// ErrUnsupported is the sentinel behind every UnsupportedError.
	ErrUnsupported = errors.New("errs: unsupported construct")
)

// LexError reports a lexical failure with its source position, matching
// the teacher's *LexerError (msg + pos + optional offending rune).
type LexError struct {
	Msg string
	Pos token.Position
	Ch  rune
}

func (e *LexError) Error() string {
	if e.Ch != 0 {
		return fmt.Sprintf("%s: lex error: %s: %q", e.Pos, e.Msg, e.Ch)
	}

	return fmt.Sprintf("%s: lex error: %s", e.Pos, e.Msg)
}

// WithPos returns a copy of e with Pos set, mirroring the teacher's
// *LexerError.withPos builder.
func (e *LexError) WithPos(pos token.Position) *LexError {
	return &LexError{Msg: e.Msg, Pos: pos, Ch: e.Ch}
}

// WithChar returns a copy of e with Ch set.
func (e *LexError) WithChar(ch rune) *LexError {
	return &LexError{Msg: e.Msg, Pos: e.Pos, Ch: ch}
}

// Lex error templates. Call WithPos (and WithChar where relevant) to
// produce a positioned instance.
var (
	ErrUnterminatedString = &LexError{Msg: "unterminated string literal"}
	ErrUnknownCharacter   = &LexError{Msg: "unknown character"}
)

// ParseError reports a syntax failure with position and expected/found
// context, matching spec §7.2 and the teacher's positioned parse errors.
type ParseError struct {
	Msg      string
	Pos      token.Position
	Expected string
	Found    string
}

func (e *ParseError) Error() string {
	if e.Expected != "" {
		return fmt.Sprintf("%s: parse error: %s (expected %s, found %s)", e.Pos, e.Msg, e.Expected, e.Found)
	}

	return fmt.Sprintf("%s: parse error: %s", e.Pos, e.Msg)
}

// NewParseError builds a ParseError for an unexpected token.
func NewParseError(pos token.Position, expected, found string) *ParseError {
	return &ParseError{
		Msg:      "unexpected token",
		Pos:      pos,
		Expected: expected,
		Found:    found,
	}
}

// NotFoundError reports a missing node/relationship id.
type NotFoundError struct {
	Kind string // "node" or "relationship"
	ID   uint64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("store: %s %d not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFound builds a NotFoundError for the given entity kind and id.
func NewNotFound(kind string, id uint64) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// TypeError reports an operand of the wrong kind, a divide-by-zero, or
// an invalid builtin-function argument (spec §7.4).
type TypeError struct {
	Msg string
}

func (e *TypeError) Error() string { return "type error: " + e.Msg }

func (e *TypeError) Unwrap() error { return ErrType }

// NewTypeError builds a TypeError with a formatted message.
func NewTypeError(format string, args ...any) *TypeError {
	return &TypeError{Msg: fmt.Sprintf(format, args...)}
}

// UnsupportedError reports a construct outside the supported subset:
// raised by the SQL generator for everything it does not lower (WITH,
// CASE, pattern expressions and quantified predicates among them), and
// by the interpreter for CALL procedures and aggregates nested inside a
// larger projected expression.
type UnsupportedError struct {
	Construct string
}

func (e *UnsupportedError) Error() string {
	return "unsupported construct: " + e.Construct
}

func (e *UnsupportedError) Unwrap() error { return ErrUnsupported }

// NewUnsupported builds an UnsupportedError naming the construct.
func NewUnsupported(construct string) *UnsupportedError {
	return &UnsupportedError{Construct: construct}
}
