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
	"io"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"plugchain/hook"
	"plugchain/loader"
)

var (
	ErrUnknownModule   = errors.New("no such module")
	ErrDuplicateModule = errors.New("module already installed")
	ErrBooted          = errors.New("host already booted")
	ErrNotLoaded       = errors.New("boot actions have not run")
)

// Route binds a view chain to an explicit HTTP method and path.
type Route struct {
	Method string
	Path   string
	View   *hook.ViewChain
}

type closer struct {
	module string
	c      io.Closer
}

// Host owns the dependency loader and the extension registry shared by all
// installed modules. Installation and boot are single-threaded; after Boot
// the host is read-only and its chains may be dispatched concurrently.
type Host struct {
	loader   *loader.Loader
	registry *hook.Registry

	configs map[string]Config
	dataDir string
	strict  bool

	modules []string
	views   map[string]*hook.ViewChain
	routes  []Route
	closers []closer
	loaded  bool
	booted  bool
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithConfig sets the configuration table handed to the named module.
func WithConfig(module string, cfg Config) HostOption {
	return func(h *Host) { h.configs[module] = cfg }
}

// WithConfigs sets the configuration tables of several modules at once.
func WithConfigs(cfgs map[string]map[string]interface{}) HostOption {
	return func(h *Host) {
		for name, cfg := range cfgs {
			h.configs[name] = Config(cfg)
		}
	}
}

// WithDataDir sets the directory modules keep their files under.
func WithDataDir(dir string) HostOption {
	return func(h *Host) { h.dataDir = dir }
}

// StrictLinks makes every link required: hookup fails instead of dropping
// links to extension points no installed module declares.
func StrictLinks(strict bool) HostOption {
	return func(h *Host) { h.strict = strict }
}

// NewHost returns an empty host.
func NewHost(opts ...HostOption) *Host {
	h := &Host{
		loader:   loader.New(),
		registry: hook.NewRegistry(),
		configs:  make(map[string]Config),
		views:    make(map[string]*hook.ViewChain),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Install runs the installers of the named modules in the order given.
// That order is the module enumeration order: it breaks ties between boot
// actions and fixes the registration order of links.
func (h *Host) Install(names ...string) error {
	for _, name := range names {
		inst, ok := provider(name)
		if !ok {
			return errors.Wrapf(ErrUnknownModule, "%q", name)
		}
		if err := h.InstallFunc(name, inst); err != nil {
			return err
		}
	}
	return nil
}

// InstallFunc installs a module whose installer was not provided globally.
func (h *Host) InstallFunc(name string, inst Installer) error {
	if h.booted {
		return errors.WithStack(ErrBooted)
	}
	for _, have := range h.modules {
		if have == name {
			return errors.Wrapf(ErrDuplicateModule, "%q", name)
		}
	}
	h.modules = append(h.modules, name)
	if err := inst(h.Module(name)); err != nil {
		return errors.Wrapf(err, "failed to install module %q", name)
	}
	log.WithFields(log.Fields{
		"module": name,
	}).Debug("module installed")
	return nil
}

// Module returns a registration handle scoped to namespace.
func (h *Host) Module(namespace string) *Module {
	cfg, ok := h.configs[namespace]
	if !ok {
		cfg = Config{}
	}
	return &Module{
		host:   h,
		name:   namespace,
		config: cfg,
		log:    log.WithField("module", namespace),
	}
}

// Modules returns the installed module names in installation order.
func (h *Host) Modules() []string {
	return append([]string(nil), h.modules...)
}

// Order returns the boot action order RunLoader would use.
func (h *Host) Order() ([]string, error) {
	return h.loader.Order()
}

// ExtensionPoints returns the declared extension point ids in declaration
// order.
func (h *Host) ExtensionPoints() []string {
	return h.registry.IDs()
}

// RunLoader runs every boot action in dependency order.
func (h *Host) RunLoader(ctx context.Context) error {
	if err := h.loader.Load(ctx); err != nil {
		return err
	}
	h.loaded = true
	return nil
}

// FinalizeLinks hooks every registered link up to its extension point. It
// fails with ErrNotLoaded until RunLoader has completed. No further
// registration is possible afterwards.
func (h *Host) FinalizeLinks() error {
	if h.booted {
		return errors.WithStack(ErrBooted)
	}
	if !h.loaded {
		return errors.WithStack(ErrNotLoaded)
	}
	if err := h.registry.Hookup(); err != nil {
		return err
	}
	h.booted = true
	return nil
}

// Boot runs the loader and then finalizes links.
func (h *Host) Boot(ctx context.Context) error {
	if h.booted {
		return errors.WithStack(ErrBooted)
	}
	if err := h.RunLoader(ctx); err != nil {
		return errors.Wrap(err, "boot failed")
	}
	if err := h.FinalizeLinks(); err != nil {
		return errors.Wrap(err, "hookup failed")
	}
	log.WithFields(log.Fields{
		"modules":          len(h.modules),
		"extension_points": len(h.registry.IDs()),
	}).Info("plugin host booted")
	return nil
}

// Chain returns the chain declared for id.
func (h *Host) Chain(id string) (*hook.Chain, bool) {
	return h.registry.Chain(id)
}

// View returns the view chain declared for id.
func (h *Host) View(id string) (*hook.ViewChain, bool) {
	v, ok := h.views[id]
	return v, ok
}

// Views returns every declared view chain in declaration order.
func (h *Host) Views() []*hook.ViewChain {
	var views []*hook.ViewChain
	for _, id := range h.registry.IDs() {
		if v, ok := h.views[id]; ok {
			views = append(views, v)
		}
	}
	return views
}

// Routes returns the explicit routes modules asked for.
func (h *Host) Routes() []Route {
	return append([]Route(nil), h.routes...)
}

// Close releases module resources in reverse registration order. The first
// error is returned; later ones are logged.
func (h *Host) Close() error {
	var first error
	for i := len(h.closers) - 1; i >= 0; i-- {
		cl := h.closers[i]
		if err := cl.c.Close(); err != nil {
			if first == nil {
				first = errors.Wrapf(err, "failed to close module %q", cl.module)
				continue
			}
			log.WithFields(log.Fields{
				"module": cl.module,
				"error":  err,
			}).Error("failed to close module resource")
		}
	}
	h.closers = nil
	return first
}
