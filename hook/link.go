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
	"context"
)

// Link is one plugin contribution to a chain stage. Invoke hands each
// response to yield, one at a time, and must stop as soon as yield returns
// false. The state passed in is the live accumulated state of the current
// dispatch: read it, and change it only by yielding Merge.
type Link interface {
	Invoke(ctx context.Context, st State, yield func(Response) bool) error
}

// Func is a link producing a single response.
type Func func(ctx context.Context, st State) (Response, error)

func (f Func) Invoke(ctx context.Context, st State, yield func(Response) bool) error {
	r, err := f(ctx, st)
	if err != nil {
		return err
	}
	yield(r)
	return nil
}

// Steps is a link producing a lazy, finite sequence of responses. Every
// Merge it yields is folded into st before yield returns, so later steps
// can depend on earlier ones.
type Steps func(ctx context.Context, st State, yield func(Response) bool) error

func (f Steps) Invoke(ctx context.Context, st State, yield func(Response) bool) error {
	return f(ctx, st, yield)
}

// named attaches a display name to a link once it is bound to a chain.
type named struct {
	Link
	name string
}
