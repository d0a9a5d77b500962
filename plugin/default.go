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

	"plugchain/hook"
	"plugchain/loader"
)

// Default is the process-wide host used by the package-level functions.
var Default = NewHost()

// RegisterAction registers a boot action with the default host.
func RegisterAction(name string, fn loader.Func, opts ...loader.Option) error {
	return Default.loader.Register(fn, append(opts, loader.Action(name))...)
}

// RegisterLink registers a link with the default host.
func RegisterLink(l hook.Link, opts ...hook.LinkOption) error {
	return Default.registry.Link(l, opts...)
}

// DeclareExtensionPoint declares a chain for id on the default host.
func DeclareExtensionPoint(id string, base hook.Base, opts ...hook.ChainOption) (*hook.Chain, error) {
	ch := hook.NewChain(id, base, opts...)
	if err := Default.registry.Declare(ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// RunLoader runs the default host's boot actions.
func RunLoader(ctx context.Context) error {
	return Default.RunLoader(ctx)
}

// FinalizeLinks performs hookup on the default host.
func FinalizeLinks() error {
	return Default.FinalizeLinks()
}
