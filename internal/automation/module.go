// Package automation defines the capability interface every automation
// module implements, plus the structured result type handlers return and the
// generic argument-decoding adapter that binds typed request structs to the
// free-form keyword arguments produced by the LLM.
package automation

import (
	"context"
	"errors"
)

// ErrInvalidArgs marks argument-mismatch failures: the intent's keyword
// arguments could not be decoded or validated into the handler's request
// type. The dispatcher reports these differently from execution failures.
var ErrInvalidArgs = errors.New("invalid arguments")

// Status classifies a handler outcome.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Result is the structured outcome of a dispatched action. Message is the
// human-readable reply text; AffectedResource names the file (or other
// resource) the action touched, which drives last-file coreference tracking
// without substring matching on reply text.
type Result struct {
	Status           Status
	Message          string
	AffectedResource string
}

// OK builds a successful result with the given reply text.
func OK(message string) Result {
	return Result{Status: StatusOK, Message: message}
}

// OKResource builds a successful result that touched a named resource.
func OKResource(message, resource string) Result {
	return Result{Status: StatusOK, Message: message, AffectedResource: resource}
}

// Handler executes one action with the intent's keyword arguments.
type Handler func(ctx context.Context, args map[string]any) (Result, error)

// Action describes a single action a module supports: the bound handler, a
// description for the capability prompt, and an example intent payload the
// LLM is shown.
type Action struct {
	Handler     Handler
	Description string
	Example     string
}

// Module is the capability interface consumed by the registry.
type Module interface {
	// Description is a short phrase describing what the module can do,
	// used both in the capability prompt and the chat system prompt.
	Description() string

	// Actions maps action names to their descriptors. Action names share a
	// single flat namespace across all modules.
	Actions() map[string]Action
}
