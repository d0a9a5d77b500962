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

// Package plugin wires plugin modules into one process-wide host. Each
// module's package provides an Installer from init(); the host installs the
// enabled ones, runs their boot actions and hooks up their links.
package plugin

import (
	"sort"
	"sync"
)

// Installer registers a module's boot actions, links and extension points.
type Installer func(m *Module) error

var (
	providersMu sync.RWMutex
	providers   = make(map[string]Installer)
)

// Provide makes a module available under name. It is meant to be called
// from the module package's init function and panics if name is empty, inst
// is nil or name was already provided.
func Provide(name string, inst Installer) {
	providersMu.Lock()
	defer providersMu.Unlock()
	if name == "" {
		panic("plugin: Provide with empty name")
	}
	if inst == nil {
		panic("plugin: Provide installer is nil for " + name)
	}
	if _, dup := providers[name]; dup {
		panic("plugin: Provide called twice for " + name)
	}
	providers[name] = inst
}

// Provided returns the sorted names of all provided modules.
func Provided() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func provider(name string) (Installer, bool) {
	providersMu.RLock()
	defer providersMu.RUnlock()
	inst, ok := providers[name]
	return inst, ok
}
