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

package plugin

import (
	"context"

	"github.com/pkg/errors"

	"plugchain/hook"
)

var ErrNoExtensionPoint = errors.New("extension point not declared")

// Chains looks up declared extension points. Host and Module implement it,
// so a module can dispatch another module's extension point without
// importing its internals.
type Chains interface {
	Chain(id string) (*hook.Chain, bool)
}

// Dispatch calls the extension point id through its chain.
func Dispatch(ctx context.Context, src Chains, id string, st hook.State) (hook.Result, error) {
	ch, ok := src.Chain(id)
	if !ok {
		return hook.Result{}, errors.Wrapf(ErrNoExtensionPoint, "%s", id)
	}
	return ch.Handle(ctx, st)
}

// Chain returns the chain declared for id by any module of the host. It is
// meant for dispatch time; during installation the owning module may not
// have declared it yet.
func (m *Module) Chain(id string) (*hook.Chain, bool) {
	return m.host.registry.Chain(id)
}
