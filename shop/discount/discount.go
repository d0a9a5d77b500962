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

// Package discount applies coupon codes to prices.
package discount

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"plugchain/hook"
	"plugchain/plugin"
	"plugchain/shop/pricing"
)

const (
	Name = "discount"

	KeyCouponRejected = "coupon_rejected"
)

func init() {
	plugin.Provide(Name, Install)
}

type coupons struct {
	m       *plugin.Module
	code    string
	percent int
}

// Install registers the discount module with m. Coupons are configured as
// code and percent.
func Install(m *plugin.Module) error {
	cfg := m.Config()
	c := &coupons{
		m:       m,
		code:    strings.ToUpper(cfg.String("code", "")),
		percent: cfg.Int("percent", 0),
	}
	if c.percent < 0 || c.percent > 100 {
		return errors.Errorf("discount percent %d out of range", c.percent)
	}
	return m.Capture(hook.Steps(c.GetPrice), hook.Namespace(pricing.Name))
}

// GetPrice flags discounted quotes and, for a valid coupon, replaces the
// base price computation with a discounted one.
func (c *coupons) GetPrice(ctx context.Context, st hook.State, yield func(hook.Response) bool) error {
	coupon := strings.ToUpper(st.String(pricing.KeyCoupon))
	if coupon == "" {
		return nil
	}
	if c.code == "" || coupon != c.code {
		yield(hook.Merge{KeyCouponRejected: true})
		return nil
	}
	if !yield(hook.Merge{pricing.KeyDiscounted: true}) {
		return nil
	}
	yield(hook.Replace(c.discounted))
	return nil
}

func (c *coupons) discounted(ctx context.Context, ch *hook.Chain, st hook.State) (hook.Result, error) {
	return pricing.Compute(ctx, c.m, ch, st, c.percent)
}
