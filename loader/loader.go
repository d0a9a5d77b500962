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

// Package loader orders named boot-time initialization actions by their
// "runs after" and "runs before" constraints and runs each of them once.
package loader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

var (
	ErrDuplicateAction = errors.New("action already has a callable")
	ErrCycle           = errors.New("cyclic ordering constraint")
	ErrAlreadyLoaded   = errors.New("loader already ran")
	ErrAnonymous       = errors.New("unnamed action without callable")
	ErrEmptyName       = errors.New("empty action name")
)

// Func is an initialization action.
type Func func(context.Context) error

type node struct {
	name  string
	fn    Func
	preds []int
}

func (n *node) addPred(i int) {
	if !slices.Contains(n.preds, i) {
		n.preds = append(n.preds, i)
	}
}

// Loader is the boot-time dependency graph. It is not safe for concurrent
// use; all registration happens from a single goroutine before Load.
type Loader struct {
	nodes  []*node
	byName map[string]int
	loaded bool
}

// New returns an empty Loader.
func New() *Loader {
	return &Loader{byName: make(map[string]int)}
}

type options struct {
	action string
	after  []string
	before []string
}

// Option configures a single registration.
type Option func(*options)

// Action binds the callable to a symbolic name other actions may refer to.
func Action(name string) Option {
	return func(o *options) { o.action = name }
}

// After orders the action after each of the named actions.
func After(names ...string) Option {
	return func(o *options) { o.after = append(o.after, names...) }
}

// Before orders the action before each of the named actions.
func Before(names ...string) Option {
	return func(o *options) { o.before = append(o.before, names...) }
}

// Register adds an initialization action. A nil fn is allowed only together
// with Action, which declares ordering constraints on a name whose callable
// is bound by a later registration.
func (l *Loader) Register(fn Func, opts ...Option) error {
	if l.loaded {
		return errors.WithStack(ErrAlreadyLoaded)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	for _, name := range append(append([]string{}, o.after...), o.before...) {
		if name == "" {
			return errors.WithStack(ErrEmptyName)
		}
	}

	var idx int
	if o.action != "" {
		if i, ok := l.byName[o.action]; ok && fn != nil && l.nodes[i].fn != nil {
			return errors.Wrapf(ErrDuplicateAction, "action %q", o.action)
		}
		idx = l.named(o.action)
		if fn != nil {
			l.nodes[idx].fn = fn
		}
	} else {
		if fn == nil {
			return errors.WithStack(ErrAnonymous)
		}
		idx = l.add(&node{fn: fn})
	}

	for _, name := range o.after {
		p := l.named(name)
		l.nodes[idx].addPred(p)
	}
	for _, name := range o.before {
		s := l.named(name)
		l.nodes[s].addPred(idx)
	}
	return nil
}

// named returns the node bound to name, creating a placeholder on first
// mention.
func (l *Loader) named(name string) int {
	if i, ok := l.byName[name]; ok {
		return i
	}
	i := l.add(&node{name: name})
	l.byName[name] = i
	return i
}

func (l *Loader) add(n *node) int {
	l.nodes = append(l.nodes, n)
	return len(l.nodes) - 1
}

func (l *Loader) label(i int) string {
	if name := l.nodes[i].name; name != "" {
		return name
	}
	return fmt.Sprintf("#%d", i)
}

// sort is Kahn's algorithm with the ready set kept ordered by registration
// index, so unconstrained actions keep their registration order.
func (l *Loader) sort() ([]int, error) {
	indeg := make([]int, len(l.nodes))
	succs := make([][]int, len(l.nodes))
	for i, n := range l.nodes {
		indeg[i] = len(n.preds)
		for _, p := range n.preds {
			succs[p] = append(succs[p], i)
		}
	}

	var ready []int
	for i := range l.nodes {
		if indeg[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]int, 0, len(l.nodes))
	for len(ready) > 0 {
		cur := ready[0]
		ready = ready[1:]
		order = append(order, cur)
		for _, s := range succs[cur] {
			indeg[s]--
			if indeg[s] == 0 {
				pos, _ := slices.BinarySearch(ready, s)
				ready = slices.Insert(ready, pos, s)
			}
		}
	}

	if len(order) != len(l.nodes) {
		return nil, errors.Wrapf(ErrCycle, "%s", strings.Join(l.cycle(indeg), " -> "))
	}
	return order, nil
}

// cycle walks predecessor edges among the nodes Kahn's algorithm could not
// place until it revisits one, and returns that loop in execution order.
func (l *Loader) cycle(indeg []int) []string {
	start := -1
	for i, d := range indeg {
		if d > 0 {
			start = i
			break
		}
	}
	seen := make(map[int]int)
	var path []int
	for cur := start; cur >= 0; {
		if at, ok := seen[cur]; ok {
			path = path[at:]
			break
		}
		seen[cur] = len(path)
		path = append(path, cur)
		next := -1
		for _, p := range l.nodes[cur].preds {
			if indeg[p] > 0 {
				next = p
				break
			}
		}
		cur = next
	}
	names := make([]string, 0, len(path)+1)
	for i := len(path) - 1; i >= 0; i-- {
		names = append(names, l.label(path[i]))
	}
	if len(path) > 0 {
		names = append(names, l.label(path[len(path)-1]))
	}
	return names
}

// Order returns the resolved execution order, including placeholders that
// were never bound.
func (l *Loader) Order() ([]string, error) {
	order, err := l.sort()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(order))
	for i, idx := range order {
		names[i] = l.label(idx)
	}
	return names, nil
}

// Load runs every bound action once, in dependency order. A cycle is
// reported before anything runs. The graph is released afterwards.
func (l *Loader) Load(ctx context.Context) error {
	if l.loaded {
		return errors.WithStack(ErrAlreadyLoaded)
	}
	order, err := l.sort()
	if err != nil {
		return err
	}
	l.loaded = true
	defer func() {
		l.nodes, l.byName = nil, nil
	}()

	l.warnUnbound()

	registerMetrics()
	ran := 0
	for _, i := range order {
		n := l.nodes[i]
		if n.fn == nil {
			continue
		}
		name := l.label(i)
		start := time.Now()
		err := n.fn(ctx)
		recordActionDuration(name, time.Since(start))
		if err != nil {
			return errors.Wrapf(err, "boot action %s failed", name)
		}
		log.WithFields(log.Fields{
			"action":   name,
			"duration": time.Since(start),
		}).Debug("boot action complete")
		ran++
	}
	log.WithFields(log.Fields{"actions": ran}).Info("boot actions loaded")
	return nil
}

// warnUnbound reports placeholders that something was ordered after but
// that no module ever bound.
func (l *Loader) warnUnbound() {
	for i, n := range l.nodes {
		if n.fn != nil {
			continue
		}
		var dependents []string
		for j, m := range l.nodes {
			if slices.Contains(m.preds, i) {
				dependents = append(dependents, l.label(j))
			}
		}
		if len(dependents) == 0 {
			continue
		}
		log.WithFields(log.Fields{
			"action":     n.name,
			"dependents": dependents,
		}).Warn("ordering constraint references an action nobody registered")
	}
}
