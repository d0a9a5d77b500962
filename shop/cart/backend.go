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

package cart

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"plugchain/plugin"
)

var ErrUnknownBackend = errors.New("unknown cart backend")

// Item is one cart line.
type Item struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

// Cart is a shopping cart.
type Cart struct {
	ID    string `json:"id"`
	Items []Item `json:"items"`
}

// Qty returns the quantity of sku in the cart.
func (c *Cart) Qty(sku string) int {
	for _, it := range c.Items {
		if it.SKU == sku {
			return it.Qty
		}
	}
	return 0
}

// Add increases the quantity of sku by qty.
func (c *Cart) Add(sku string, qty int) {
	for i := range c.Items {
		if c.Items[i].SKU == sku {
			c.Items[i].Qty += qty
			return
		}
	}
	c.Items = append(c.Items, Item{SKU: sku, Qty: qty})
}

func (c *Cart) clone() *Cart {
	out := &Cart{ID: c.ID, Items: make([]Item, len(c.Items))}
	copy(out.Items, c.Items)
	return out
}

// Backend stores carts. Get returns an empty cart for unknown IDs.
type Backend interface {
	Get(ctx context.Context, id string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// Constructor builds a backend from the cart module's configuration.
type Constructor func(cfg plugin.Config) (Backend, error)

var (
	constructorsMu sync.RWMutex
	constructors   = make(map[string]Constructor)
)

// RegisterBackend makes a backend available by name.
func RegisterBackend(name string, ctor Constructor) {
	constructorsMu.Lock()
	defer constructorsMu.Unlock()
	constructors[name] = ctor
}

// NewBackend creates the backend named name.
func NewBackend(name string, cfg plugin.Config) (Backend, error) {
	constructorsMu.RLock()
	ctor, ok := constructors[name]
	constructorsMu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrUnknownBackend, "%q", name)
	}
	return ctor(cfg)
}
