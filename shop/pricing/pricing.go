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

// Package pricing owns the pricing.get_price extension point. Other modules
// adjust prices by linking into it: tax as an execute link, discounts as a
// capture link that may replace the base computation.
package pricing

import (
	"context"

	"github.com/pkg/errors"

	"plugchain/hook"
	"plugchain/loader"
	"plugchain/plugin"
	"plugchain/shop/catalog"
)

const (
	Name = "pricing"

	ActionSetup = "pricing.setup"
	GetPriceID  = "pricing.get_price"

	KeySKU        = "sku"
	KeyQty        = "qty"
	KeyCoupon     = "coupon"
	KeyUnitPrice  = "unit_price"
	KeyPrice      = "price"
	KeyTax        = "tax"
	KeyCurrency   = "currency"
	KeyDiscounted = "discounted"

	defaultCurrency = "EUR"
)

var ErrInvalidQty = errors.New("quantity must be positive")

func init() {
	plugin.Provide(Name, Install)
}

// Quote is the outcome of a price computation.
type Quote struct {
	SKU        string `json:"sku"`
	Qty        int    `json:"qty"`
	UnitPrice  int    `json:"unit_price"`
	Price      int    `json:"price"`
	Tax        int    `json:"tax"`
	Currency   string `json:"currency"`
	Discounted bool   `json:"discounted"`
}

type pricing struct {
	m        *plugin.Module
	currency string
}

// Install registers the pricing module with m.
func Install(m *plugin.Module) error {
	p := &pricing{m: m}
	err := m.Action("setup", p.setup, loader.After(catalog.ActionOpenStore))
	if err != nil {
		return err
	}
	if _, err = m.Declare("get_price", p.getPrice); err != nil {
		return err
	}
	return m.Link(hook.Func(p.applyCurrency), hook.Name("get_price"))
}

func (p *pricing) setup(ctx context.Context) error {
	p.currency = p.m.Config().String("currency", defaultCurrency)
	return nil
}

// Base computes the undiscounted price of qty units of a product and then
// lets execute links adjust it.
func (p *pricing) getPrice(ctx context.Context, ch *hook.Chain, st hook.State) (hook.Result, error) {
	return Compute(ctx, p.m, ch, st, 0)
}

// Compute fills in unit and total price for the SKU and quantity in st,
// taking percentOff off the unit price, then runs the execute stage. It is
// the base computation of pricing.get_price; overrides reuse it.
func Compute(ctx context.Context, src plugin.Chains, ch *hook.Chain, st hook.State, percentOff int) (hook.Result, error) {
	qty := st.Int(KeyQty)
	if qty <= 0 {
		return hook.Result{}, errors.Wrapf(ErrInvalidQty, "%d", qty)
	}
	prod, err := catalog.GetProduct(ctx, src, st.String(KeySKU))
	if err != nil {
		return hook.Result{}, err
	}
	unit := prod.Price * (100 - percentOff) / 100
	st[KeyUnitPrice] = unit
	st[KeyPrice] = unit * qty
	return ch.Execute(ctx, st)
}

func (p *pricing) applyCurrency(ctx context.Context, st hook.State) (hook.Response, error) {
	if st.String(KeyCurrency) != "" {
		return hook.Continue, nil
	}
	return hook.Merge{KeyCurrency: p.currency}, nil
}

// GetPrice quotes qty units of sku through the pricing.get_price extension
// point. A terminal response carrying an error is returned as the error.
func GetPrice(ctx context.Context, src plugin.Chains, sku string, qty int, coupon string) (*Quote, error) {
	st := hook.State{KeySKU: sku, KeyQty: qty}
	if coupon != "" {
		st[KeyCoupon] = coupon
	}
	res, err := plugin.Dispatch(ctx, src, GetPriceID, st)
	if err != nil {
		return nil, err
	}
	if res.Terminal {
		if err, ok := res.Value.(error); ok {
			return nil, err
		}
		if q, ok := res.Value.(*Quote); ok {
			return q, nil
		}
	}
	return &Quote{
		SKU:        sku,
		Qty:        qty,
		UnitPrice:  res.State.Int(KeyUnitPrice),
		Price:      res.State.Int(KeyPrice),
		Tax:        res.State.Int(KeyTax),
		Currency:   res.State.String(KeyCurrency),
		Discounted: res.State.Bool(KeyDiscounted),
	}, nil
}
