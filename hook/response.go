/*
   plugchain - extension-point runtime
   Copyright (C) 2025  the plugchain Contributors

   This program is free software: you can redistribute it and/or modify
   it under the terms of the GNU Affero General Public License as published by
   the Free Software Foundation, version 3.

   This program is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
   GNU Affero General Public License for more details.

   You should have received a copy of the GNU Affero General Public License
   along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

package hook

import (
	"golang.org/x/exp/maps"
)

// State is the keyword state folded through a chain. Each dispatch works on
// its own copy.
type State map[string]interface{}

func (s State) clone() State {
	if s == nil {
		return State{}
	}
	return maps.Clone(s)
}

// Int returns the integer stored under key, or 0.
func (s State) Int(key string) int {
	switch v := s[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// String returns the string stored under key, or "".
func (s State) String(key string) string {
	v, _ := s[key].(string)
	return v
}

// Bool returns the bool stored under key, or false.
func (s State) Bool(key string) bool {
	v, _ := s[key].(bool)
	return v
}

// Response is what a link produces for each step of its output. The set of
// implementations is closed: Merge, Continue, Skip, Override and Terminal.
type Response interface {
	response()
}

// Merge folds its keys into the accumulated state; the last write wins.
type Merge State

// Override replaces the chain's base implementation for one call. Only the
// capture stage accepts it.
type Override struct {
	Base Base
}

// Terminal ends the stage immediately and becomes the dispatch result.
type Terminal struct {
	Value interface{}
}

type continueResponse struct{}

type skipResponse struct{}

var (
	// Continue means the link has no opinion.
	Continue Response = continueResponse{}

	// Skip discards the rest of the current link's own output. Merges the
	// link already produced are kept.
	Skip Response = skipResponse{}
)

func (Merge) response()            {}
func (Override) response()         {}
func (Terminal) response()         {}
func (continueResponse) response() {}
func (skipResponse) response()     {}

// Replace is shorthand for Override{Base: base}.
func Replace(base Base) Response {
	return Override{Base: base}
}

// Respond is shorthand for Terminal{Value: v}.
func Respond(v interface{}) Response {
	return Terminal{Value: v}
}

// Result is the outcome of Handle or Execute. Base implementations usually
// return the Result of Execute; they may instead return their own Value.
type Result struct {
	State    State
	Value    interface{}
	Terminal bool
}

// Done returns st as a base implementation result without a value.
func Done(st State) (Result, error) {
	return Result{State: st}, nil
}

// Value wraps v as a base implementation result.
func Value(v interface{}) (Result, error) {
	return Result{Value: v}, nil
}
