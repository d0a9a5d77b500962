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

// Package tax adds sales tax to prices computed by the pricing module.
package tax

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"plugchain/hook"
	"plugchain/loader"
	"plugchain/plugin"
	"plugchain/shop/pricing"
)

const (
	Name = "tax"

	ActionLoadRates = "tax.load_rates"
)

func init() {
	plugin.Provide(Name, Install)
}

type rates struct {
	m      *plugin.Module
	rate   float64
	exempt map[string]bool
}

// Install registers the tax module with m. Its link is dropped at hookup
// when the pricing module is not installed.
func Install(m *plugin.Module) error {
	r := &rates{m: m}
	if err := m.Action("load_rates", r.load, loader.After(pricing.ActionSetup)); err != nil {
		return err
	}
	return m.Link(hook.Func(r.GetPrice), hook.Namespace(pricing.Name))
}

func (r *rates) load(ctx context.Context) error {
	cfg := r.m.Config()
	r.rate = cfg.Float("rate", 0)
	if r.rate < 0 || r.rate > 100 {
		return errors.Errorf("tax rate %v out of range", r.rate)
	}
	r.exempt = make(map[string]bool)
	for _, sku := range cfg.Strings("exempt") {
		r.exempt[sku] = true
	}
	r.m.Logger().WithField("rate", r.rate).Debug("tax rates loaded")
	return nil
}

// GetPrice adds tax on the accumulated price.
func (r *rates) GetPrice(ctx context.Context, st hook.State) (hook.Response, error) {
	if r.rate == 0 || r.exempt[st.String(pricing.KeySKU)] {
		return hook.Continue, nil
	}
	price := st.Int(pricing.KeyPrice)
	tax := int(math.Round(float64(price) * r.rate / 100))
	return hook.Merge{
		pricing.KeyTax:   tax,
		pricing.KeyPrice: price + tax,
	}, nil
}
