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
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"plugchain/hook"
	"plugchain/loader"
)

// Module is the registration handle an Installer receives. Its name is the
// default namespace for actions, links and extension points.
type Module struct {
	host   *Host
	name   string
	config Config
	log    *log.Entry
}

// Name returns the module namespace.
func (m *Module) Name() string { return m.name }

// Config returns the module's configuration table.
func (m *Module) Config() Config { return m.config }

// Logger returns a logger tagged with the module name.
func (m *Module) Logger() *log.Entry { return m.log }

// DataDir returns the directory reserved for the module's files, or the
// empty string when the host has none.
func (m *Module) DataDir() string {
	if m.host.dataDir == "" {
		return ""
	}
	return filepath.Join(m.host.dataDir, m.name)
}

func (m *Module) qualify(name string) string {
	if name == "" || strings.Contains(name, ".") {
		return name
	}
	return m.name + "." + name
}

// Action registers a boot action. A bare name is qualified with the module
// namespace; After and Before take fully qualified names. A nil fn only
// declares the action and its ordering constraints.
func (m *Module) Action(name string, fn loader.Func, opts ...loader.Option) error {
	if m.host.booted {
		return errors.WithStack(ErrBooted)
	}
	opts = append(opts, loader.Action(m.qualify(name)))
	return m.host.loader.Register(fn, opts...)
}

// Link registers an execute-stage link. The namespace defaults to the
// module's own; pass hook.Namespace or hook.Target to reach another
// module's extension point.
func (m *Module) Link(l hook.Link, opts ...hook.LinkOption) error {
	return m.link(l, opts)
}

// Capture registers a capture-stage link.
func (m *Module) Capture(l hook.Link, opts ...hook.LinkOption) error {
	return m.link(l, append(opts, hook.Capture()))
}

func (m *Module) link(l hook.Link, opts []hook.LinkOption) error {
	opts = append([]hook.LinkOption{hook.Namespace(m.name)}, opts...)
	if m.host.strict {
		opts = append(opts, hook.Required())
	}
	return m.host.registry.Link(l, opts...)
}

// Declare publishes the extension point "<module>.<name>" with base as its
// default behavior and returns its chain.
func (m *Module) Declare(name string, base hook.Base, opts ...hook.ChainOption) (*hook.Chain, error) {
	ch := hook.NewChain(m.qualify(name), base, opts...)
	if err := m.host.registry.Declare(ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// DeclareView publishes a view chain. Views are served under
// /views/<module>/<name> and at any explicit Route.
func (m *Module) DeclareView(name string, base hook.Base) (*hook.ViewChain, error) {
	v := hook.NewViewChain(m.qualify(name), base)
	if err := m.host.registry.Declare(v.Chain); err != nil {
		return nil, err
	}
	m.host.views[v.ID()] = v
	return v, nil
}

// Route asks the host's server to serve v at method and path. Paths follow
// httprouter syntax.
func (m *Module) Route(method, path string, v *hook.ViewChain) {
	m.host.routes = append(m.host.routes, Route{Method: method, Path: path, View: v})
}

// OnClose registers c to be closed when the host shuts down.
func (m *Module) OnClose(c io.Closer) {
	m.host.closers = append(m.host.closers, closer{module: m.name, c: c})
}
