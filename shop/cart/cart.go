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

// Package cart owns shopping carts and the cart.add_item, cart.get and
// cart.clear extension points. Carts live in a pluggable backend.
package cart

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"plugchain/hook"
	"plugchain/plugin"
	"plugchain/shop/catalog"
)

const (
	Name = "cart"

	ActionOpenBackend = "cart.open_backend"
	AddItemID         = "cart.add_item"
	GetID             = "cart.get"
	ClearID           = "cart.clear"

	KeyCartID = "cart_id"
	KeySKU    = "sku"
	KeyQty    = "qty"
	KeyCart   = "cart"
)

var (
	ErrInvalidItem = errors.New("invalid cart item")
	errNotOpen     = errors.New("cart backend is not open")
)

// Rejection is the terminal response of a cart.add_item capture link that
// refuses the item.
type Rejection struct {
	SKU    string
	Reason string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("cannot add %s: %s", r.SKU, r.Reason)
}

func init() {
	plugin.Provide(Name, Install)
}

type carts struct {
	m       *plugin.Module
	backend Backend
}

// Install registers the cart module with m. The backend is chosen by the
// "backend" configuration key.
func Install(m *plugin.Module) error {
	c := &carts{m: m}
	if err := m.Action("open_backend", c.open); err != nil {
		return err
	}
	if _, err := m.Declare("add_item", c.addItem); err != nil {
		return err
	}
	if _, err := m.Declare("get", c.get); err != nil {
		return err
	}
	if _, err := m.Declare("clear", c.clear); err != nil {
		return err
	}
	return m.Capture(hook.Func(c.AddItem))
}

func (c *carts) open(ctx context.Context) error {
	name := c.m.Config().String("backend", "memory")
	b, err := NewBackend(name, c.m.Config())
	if err != nil {
		return err
	}
	c.m.OnClose(b)
	c.backend = b
	c.m.Logger().WithField("backend", name).Debug("cart backend open")
	return nil
}

func (c *carts) load(ctx context.Context, st hook.State) (*Cart, error) {
	if c.backend == nil {
		return nil, errors.WithStack(errNotOpen)
	}
	id := st.String(KeyCartID)
	if id == "" {
		return nil, errors.Wrap(ErrInvalidItem, "missing cart id")
	}
	return c.backend.Get(ctx, id)
}

func (c *carts) addItem(ctx context.Context, ch *hook.Chain, st hook.State) (hook.Result, error) {
	sku, qty := st.String(KeySKU), st.Int(KeyQty)
	if sku == "" || qty <= 0 {
		return hook.Result{}, errors.Wrapf(ErrInvalidItem, "%q x %d", sku, qty)
	}
	cart, err := c.load(ctx, st)
	if err != nil {
		return hook.Result{}, err
	}
	cart.Add(sku, qty)
	if err := c.backend.Save(ctx, cart); err != nil {
		return hook.Result{}, err
	}
	st[KeyCart] = cart
	return ch.Execute(ctx, st)
}

func (c *carts) get(ctx context.Context, ch *hook.Chain, st hook.State) (hook.Result, error) {
	cart, err := c.load(ctx, st)
	if err != nil {
		return hook.Result{}, err
	}
	st[KeyCart] = cart
	return ch.Execute(ctx, st)
}

func (c *carts) clear(ctx context.Context, ch *hook.Chain, st hook.State) (hook.Result, error) {
	if c.backend == nil {
		return hook.Result{}, errors.WithStack(errNotOpen)
	}
	if err := c.backend.Delete(ctx, st.String(KeyCartID)); err != nil {
		return hook.Result{}, err
	}
	return ch.Execute(ctx, st)
}

// AddItem refuses unknown products and quantities beyond stock.
func (c *carts) AddItem(ctx context.Context, st hook.State) (hook.Response, error) {
	sku := st.String(KeySKU)
	p, err := catalog.GetProduct(ctx, c.m, sku)
	if errors.Cause(err) == catalog.ErrNotFound {
		return hook.Respond(&Rejection{SKU: sku, Reason: "unknown product"}), nil
	} else if err != nil {
		return nil, err
	}
	cart, err := c.load(ctx, st)
	if err != nil {
		return nil, err
	}
	if cart.Qty(sku)+st.Int(KeyQty) > p.Stock {
		return hook.Respond(&Rejection{SKU: sku, Reason: "not enough stock"}), nil
	}
	return hook.Continue, nil
}

func cartOf(res hook.Result, err error) (*Cart, error) {
	if err != nil {
		return nil, err
	}
	if res.Terminal {
		if err, ok := res.Value.(error); ok {
			return nil, err
		}
	}
	cart, _ := res.State[KeyCart].(*Cart)
	return cart, nil
}

// AddItem adds qty units of sku to the cart through cart.add_item.
func AddItem(ctx context.Context, src plugin.Chains, cartID, sku string, qty int) (*Cart, error) {
	return cartOf(plugin.Dispatch(ctx, src, AddItemID, hook.State{
		KeyCartID: cartID,
		KeySKU:    sku,
		KeyQty:    qty,
	}))
}

// Get returns the cart through cart.get.
func Get(ctx context.Context, src plugin.Chains, cartID string) (*Cart, error) {
	return cartOf(plugin.Dispatch(ctx, src, GetID, hook.State{KeyCartID: cartID}))
}

// Clear empties the cart through cart.clear.
func Clear(ctx context.Context, src plugin.Chains, cartID string) error {
	_, err := plugin.Dispatch(ctx, src, ClearID, hook.State{KeyCartID: cartID})
	return err
}
