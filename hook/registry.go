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
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	ErrFrozen             = errors.New("registry is frozen")
	ErrDuplicateChain     = errors.New("extension point already declared")
	ErrInvalidID          = errors.New("invalid extension point identifier")
	ErrUnresolvedLink     = errors.New("cannot resolve link target")
	ErrDanglingLink       = errors.New("link targets an undeclared extension point")
	ErrUnexpectedResponse = errors.New("unexpected link response")
)

type pending struct {
	name     string
	link     Link
	capture  bool
	required bool
}

// Registry collects link registrations and declared chains during boot.
// Hookup binds the former to the latter and freezes the registry; it is
// not safe for concurrent registration.
type Registry struct {
	pending map[string][]pending
	ids     []string
	chains  map[string]*Chain
	order   []string
	frozen  bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		pending: make(map[string][]pending),
		chains:  make(map[string]*Chain),
	}
}

type linkOptions struct {
	namespace string
	name      string
	capture   bool
	required  bool
}

// LinkOption configures a link registration.
type LinkOption func(*linkOptions)

// Namespace sets the namespace of the target extension point.
func Namespace(ns string) LinkOption {
	return func(o *linkOptions) { o.namespace = ns }
}

// Name sets the name of the target extension point within its namespace.
func Name(name string) LinkOption {
	return func(o *linkOptions) { o.name = name }
}

// Target sets both parts of the extension point identifier at once.
func Target(id string) LinkOption {
	return func(o *linkOptions) {
		if i := strings.LastIndex(id, "."); i >= 0 {
			o.namespace, o.name = id[:i], id[i+1:]
		} else {
			o.name = id
		}
	}
}

// Capture places the link in the capture stage.
func Capture() LinkOption {
	return func(o *linkOptions) { o.capture = true }
}

// Required makes hookup fail when the target extension point is never
// declared, instead of dropping the link with a warning.
func Required() LinkOption {
	return func(o *linkOptions) { o.required = true }
}

// Link records a pending link. Without Name the extension point name is
// inferred from the link function's own name; without Namespace the link
// cannot be resolved.
func (r *Registry) Link(l Link, opts ...LinkOption) error {
	if r.frozen {
		return errors.WithStack(ErrFrozen)
	}
	if isNilLink(l) {
		return errors.Wrap(ErrUnresolvedLink, "nil link")
	}
	var o linkOptions
	for _, opt := range opts {
		opt(&o)
	}
	symbol, isFunc := symbolOf(l)
	if o.name == "" {
		name, ok := inferName(symbol)
		if !isFunc || !ok {
			return errors.Wrapf(ErrUnresolvedLink, "cannot infer extension point name from %s", symbol)
		}
		o.name = name
	}
	if o.namespace == "" {
		return errors.Wrapf(ErrUnresolvedLink, "no namespace for %s", o.name)
	}

	id := o.namespace + "." + o.name
	if _, ok := r.pending[id]; !ok {
		r.ids = append(r.ids, id)
	}
	r.pending[id] = append(r.pending[id], pending{
		name:     symbol,
		link:     l,
		capture:  o.capture,
		required: o.required,
	})
	return nil
}

// Declare publishes the chain owned by a module.
func (r *Registry) Declare(c *Chain) error {
	if r.frozen {
		return errors.WithStack(ErrFrozen)
	}
	if err := ValidateID(c.ID()); err != nil {
		return err
	}
	if _, ok := r.chains[c.ID()]; ok {
		return errors.Wrapf(ErrDuplicateChain, "%s", c.ID())
	}
	r.chains[c.ID()] = c
	r.order = append(r.order, c.ID())
	return nil
}

// ValidateID checks an identifier has the "namespace.name" form.
func ValidateID(id string) error {
	i := strings.LastIndex(id, ".")
	if i <= 0 || i == len(id)-1 {
		return errors.Wrapf(ErrInvalidID, "%q", id)
	}
	return nil
}

// Hookup attaches every pending link to its chain, in registration order,
// then seals all chains and releases the pending table. Links to undeclared
// extension points are dropped with a warning unless they are Required.
func (r *Registry) Hookup() error {
	if r.frozen {
		return errors.WithStack(ErrFrozen)
	}
	for _, id := range r.ids {
		if _, ok := r.chains[id]; ok {
			continue
		}
		for _, p := range r.pending[id] {
			if p.required {
				return errors.Wrapf(ErrDanglingLink, "%s -> %s", p.name, id)
			}
		}
	}

	r.frozen = true
	registerMetrics()
	for _, id := range r.ids {
		ch, ok := r.chains[id]
		for _, p := range r.pending[id] {
			if !ok {
				log.WithFields(log.Fields{
					"link":            p.name,
					"extension_point": id,
				}).Warn("dropping link to undeclared extension point")
				continue
			}
			if err := ch.attach(named{Link: p.link, name: p.name}, p.capture); err != nil {
				return err
			}
		}
	}
	for _, id := range r.order {
		ch := r.chains[id]
		ch.seal()
		capture, execute := ch.Links()
		recordLinks(id, capture, execute)
		log.WithFields(log.Fields{
			"extension_point": id,
			"capture":         capture,
			"execute":         execute,
		}).Debug("extension point hooked up")
	}
	r.pending, r.ids = nil, nil
	return nil
}

// Chain returns the chain declared for id.
func (r *Registry) Chain(id string) (*Chain, bool) {
	c, ok := r.chains[id]
	return c, ok
}

// IDs returns declared extension points in declaration order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}
