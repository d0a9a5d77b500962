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
	"time"

	"github.com/pkg/errors"
)

// Base is the default behavior of an extension point. It receives the chain
// so it can run the execute stage with Execute.
type Base func(ctx context.Context, ch *Chain, st State) (Result, error)

type stage string

const (
	captureStage stage = "capture"
	executeStage stage = "execute"
)

// Chain dispatches one extension point: the capture stage, then the base
// implementation, which normally runs the execute stage. A chain is
// immutable once sealed by Registry.Hookup and may then be dispatched from
// any number of goroutines.
type Chain struct {
	id       string
	base     Base
	capture  []named
	execute  []named
	terminal func(interface{}) bool
	sealed   bool
}

// ChainOption configures a chain at construction time.
type ChainOption func(*Chain)

// TerminalIf restricts which Terminal values the chain accepts. A terminal
// response failing the predicate is a contract violation.
func TerminalIf(pred func(v interface{}) bool) ChainOption {
	return func(c *Chain) { c.terminal = pred }
}

// NewChain returns an unsealed chain for the extension point id. A nil base
// makes Handle run the execute stage directly.
func NewChain(id string, base Base, opts ...ChainOption) *Chain {
	c := &Chain{id: id, base: base}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the extension point identifier, "namespace.name".
func (c *Chain) ID() string { return c.id }

// Links returns the number of capture and execute links hooked up.
func (c *Chain) Links() (capture, execute int) {
	return len(c.capture), len(c.execute)
}

func (c *Chain) attach(l named, capture bool) error {
	if c.sealed {
		return errors.Wrapf(ErrFrozen, "chain %s", c.id)
	}
	if capture {
		// Most recently registered capture link runs first.
		c.capture = append([]named{l}, c.capture...)
	} else {
		c.execute = append(c.execute, l)
	}
	return nil
}

func (c *Chain) seal() { c.sealed = true }

// Handle dispatches the extension point. st is copied; the caller's map is
// never modified.
func (c *Chain) Handle(ctx context.Context, st State) (Result, error) {
	start := time.Now()
	outcome := outcomeReturned
	defer func() {
		recordDispatch(c.id, outcome, time.Since(start))
	}()

	st = st.clone()
	f, err := c.fold(ctx, captureStage, c.capture, st)
	if err != nil {
		outcome = outcomeError
		return Result{}, err
	}
	if f.terminal {
		outcome = outcomeTerminal
		return Result{State: st, Value: f.value, Terminal: true}, nil
	}

	base := c.base
	if f.override != nil {
		outcome = outcomeOverride
		base = f.override
	}
	if base == nil {
		base = passthrough
	}
	res, err := base(ctx, c, st)
	if err != nil {
		outcome = outcomeError
	}
	return res, err
}

// Execute runs the execute stage in registration order over a copy of st.
func (c *Chain) Execute(ctx context.Context, st State) (Result, error) {
	st = st.clone()
	f, err := c.fold(ctx, executeStage, c.execute, st)
	if err != nil {
		return Result{}, err
	}
	return Result{State: st, Value: f.value, Terminal: f.terminal}, nil
}

func passthrough(ctx context.Context, ch *Chain, st State) (Result, error) {
	return ch.Execute(ctx, st)
}

type folded struct {
	override Base
	value    interface{}
	terminal bool
}

// fold runs links in order, merging their responses into st until one of
// them overrides or terminates.
func (c *Chain) fold(ctx context.Context, stg stage, links []named, st State) (folded, error) {
	var out folded
	for _, l := range links {
		var bad error
		done, stop := false, false
		err := l.Invoke(ctx, st, func(r Response) bool {
			if done {
				return false
			}
			switch r := r.(type) {
			case Merge:
				for k, v := range r {
					st[k] = v
				}
				return true
			case continueResponse:
				return true
			case skipResponse:
			case Override:
				if stg != captureStage || r.Base == nil {
					bad = c.unexpected(stg, l.name, r)
				} else {
					out.override, stop = r.Base, true
				}
			case Terminal:
				if c.terminal != nil && !c.terminal(r.Value) {
					bad = c.unexpected(stg, l.name, r.Value)
				} else {
					out.value, out.terminal, stop = r.Value, true, true
				}
			default:
				bad = c.unexpected(stg, l.name, r)
			}
			done = true
			return false
		})
		if bad != nil {
			return folded{}, bad
		}
		if err != nil {
			return folded{}, errors.Wrapf(err, "%s link %s on %s", stg, l.name, c.id)
		}
		if stop {
			return out, nil
		}
	}
	return out, nil
}

func (c *Chain) unexpected(stg stage, link string, v interface{}) error {
	return errors.Wrapf(ErrUnexpectedResponse, "%s link %s on %s returned %T", stg, link, c.id, v)
}
