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

// Package views exposes the shop over HTTP. Every endpoint is a view chain,
// so other modules can answer requests early or replace a view entirely.
package views

import (
	"context"
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"plugchain/hook"
	"plugchain/plugin"
	"plugchain/shop/cart"
	"plugchain/shop/catalog"
	"plugchain/shop/checkout"
	"plugchain/shop/pricing"
)

const (
	Name = "views"

	ProductID   = "views.product"
	AddToCartID = "views.add_to_cart"
	CheckoutID  = "views.checkout"

	KeyProduct = "product"
)

func init() {
	plugin.Provide(Name, Install)
}

type views struct {
	m           *plugin.Module
	maintenance bool
}

type errorBody struct {
	Error string `json:"error"`
}

func errorResponse(status int, err error) http.Handler {
	return hook.JSON(status, errorBody{Error: err.Error()})
}

// Install registers the views module with m.
func Install(m *plugin.Module) error {
	v := &views{m: m, maintenance: m.Config().Bool("maintenance", false)}

	product, err := m.DeclareView("product", v.product)
	if err != nil {
		return err
	}
	m.Route(http.MethodGet, "/products/:sku", product)
	addToCart, err := m.DeclareView("add_to_cart", v.addToCart)
	if err != nil {
		return err
	}
	m.Route(http.MethodPost, "/carts/:cart/items", addToCart)
	pay, err := m.DeclareView("checkout", v.checkout)
	if err != nil {
		return err
	}
	m.Route(http.MethodPost, "/carts/:cart/checkout", pay)

	if err := m.Capture(hook.Func(v.Product)); err != nil {
		return err
	}
	// Registered last so it runs before every other capture link.
	for _, id := range []string{ProductID, AddToCartID, CheckoutID} {
		if err := m.Capture(hook.Func(v.unavailable), hook.Target(id)); err != nil {
			return err
		}
	}
	return nil
}

func (v *views) unavailable(ctx context.Context, st hook.State) (hook.Response, error) {
	if !v.maintenance {
		return hook.Continue, nil
	}
	return hook.Respond(errorResponse(http.StatusServiceUnavailable, errors.New("down for maintenance"))), nil
}

// Product answers 404 for unknown products and passes the product on.
func (v *views) Product(ctx context.Context, st hook.State) (hook.Response, error) {
	p, err := catalog.GetProduct(ctx, v.m, hook.Params(st).ByName("sku"))
	if errors.Cause(err) == catalog.ErrNotFound {
		return hook.Respond(errorResponse(http.StatusNotFound, err)), nil
	} else if err != nil {
		return nil, err
	}
	return hook.Merge{KeyProduct: p}, nil
}

type productBody struct {
	*catalog.Product
	Quote *pricing.Quote `json:"quote"`
}

// formQty reads the optional qty form value, defaulting to one.
func formQty(r *http.Request) (int, error) {
	s := r.FormValue("qty")
	if s == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errors.Errorf("invalid qty %q", s)
	}
	return n, nil
}

func (v *views) product(ctx context.Context, ch *hook.Chain, st hook.State) (hook.Result, error) {
	res, err := ch.Execute(ctx, st)
	if err != nil || res.Terminal {
		return res, err
	}
	p, ok := res.State[KeyProduct].(*catalog.Product)
	if !ok {
		return hook.Result{}, errors.New("product view without product")
	}
	r := hook.Request(st)
	qty, err := formQty(r)
	if err != nil {
		return hook.Value(errorResponse(http.StatusBadRequest, err))
	}
	q, err := pricing.GetPrice(ctx, v.m, p.SKU, qty, r.FormValue("coupon"))
	if err != nil {
		return hook.Result{}, err
	}
	return hook.Value(hook.JSON(http.StatusOK, productBody{Product: p, Quote: q}))
}

func (v *views) addToCart(ctx context.Context, ch *hook.Chain, st hook.State) (hook.Result, error) {
	res, err := ch.Execute(ctx, st)
	if err != nil || res.Terminal {
		return res, err
	}
	r := hook.Request(st)
	qty, err := formQty(r)
	if err != nil {
		return hook.Value(errorResponse(http.StatusBadRequest, err))
	}
	c, err := cart.AddItem(ctx, v.m, hook.Params(st).ByName("cart"), r.FormValue("sku"), qty)
	var rej *cart.Rejection
	switch {
	case errors.As(err, &rej):
		return hook.Value(errorResponse(http.StatusConflict, err))
	case errors.Cause(err) == cart.ErrInvalidItem:
		return hook.Value(errorResponse(http.StatusBadRequest, err))
	case err != nil:
		return hook.Result{}, err
	}
	return hook.Value(hook.JSON(http.StatusOK, c))
}

func (v *views) checkout(ctx context.Context, ch *hook.Chain, st hook.State) (hook.Result, error) {
	res, err := ch.Execute(ctx, st)
	if err != nil || res.Terminal {
		return res, err
	}
	r := hook.Request(st)
	receipt, err := checkout.Pay(ctx, v.m, hook.Params(st).ByName("cart"), r.FormValue("coupon"))
	if errors.Cause(err) == checkout.ErrEmptyCart {
		return hook.Value(errorResponse(http.StatusConflict, err))
	} else if err != nil {
		return hook.Result{}, err
	}
	status := http.StatusCreated
	if receipt.AlreadyPaid {
		status = http.StatusOK
	}
	return hook.Value(hook.JSON(status, receipt))
}
