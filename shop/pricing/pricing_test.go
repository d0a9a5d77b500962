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

package pricing

import (
	"context"
	stdtesting "testing"

	"github.com/pkg/errors"
	gc "gopkg.in/check.v1"

	"plugchain/hook"
	"plugchain/plugin"
	"plugchain/shop/catalog"
)

func Test(t *stdtesting.T) { gc.TestingT(t) }

type PricingSuite struct {
	h *plugin.Host
}

var _ = gc.Suite(&PricingSuite{})

func catalogConfig() plugin.Config {
	return plugin.Config{
		"products": []map[string]interface{}{
			{"sku": "mug", "name": "Mug", "price": int64(800), "stock": int64(5)},
		},
	}
}

func (s *PricingSuite) TearDownTest(c *gc.C) {
	if s.h != nil {
		c.Assert(s.h.Close(), gc.IsNil)
		s.h = nil
	}
}

func (s *PricingSuite) boot(c *gc.C, opts []plugin.HostOption, extra ...plugin.Installer) {
	s.h = plugin.NewHost(append(opts, plugin.WithConfig(catalog.Name, catalogConfig()))...)
	c.Assert(s.h.Install(Name, catalog.Name), gc.IsNil)
	for i, inst := range extra {
		c.Assert(s.h.InstallFunc("ext"+string(rune('a'+i)), inst), gc.IsNil)
	}
	c.Assert(s.h.Boot(context.Background()), gc.IsNil)
}

func (s *PricingSuite) TestBasePrice(c *gc.C) {
	s.boot(c, nil)
	q, err := GetPrice(context.Background(), s.h, "mug", 3, "")
	c.Assert(err, gc.IsNil)
	c.Assert(q, gc.DeepEquals, &Quote{
		SKU:       "mug",
		Qty:       3,
		UnitPrice: 800,
		Price:     2400,
		Currency:  "EUR",
	})
}

func (s *PricingSuite) TestConfiguredCurrency(c *gc.C) {
	s.boot(c, []plugin.HostOption{plugin.WithConfig(Name, plugin.Config{"currency": "CHF"})})
	q, err := GetPrice(context.Background(), s.h, "mug", 1, "")
	c.Assert(err, gc.IsNil)
	c.Assert(q.Currency, gc.Equals, "CHF")
}

func (s *PricingSuite) TestInvalidInput(c *gc.C) {
	s.boot(c, nil)
	_, err := GetPrice(context.Background(), s.h, "mug", 0, "")
	c.Assert(errors.Cause(err), gc.Equals, ErrInvalidQty)
	_, err = GetPrice(context.Background(), s.h, "hat", 1, "")
	c.Assert(errors.Cause(err), gc.Equals, catalog.ErrNotFound)
}

func (s *PricingSuite) TestExecuteLinksInOrder(c *gc.C) {
	s.boot(c, nil,
		func(m *plugin.Module) error {
			return m.Link(hook.Func(func(ctx context.Context, st hook.State) (hook.Response, error) {
				return hook.Merge{KeyPrice: st.Int(KeyPrice) + 100}, nil
			}), hook.Target(GetPriceID))
		},
		func(m *plugin.Module) error {
			return m.Link(hook.Func(func(ctx context.Context, st hook.State) (hook.Response, error) {
				return hook.Merge{KeyPrice: st.Int(KeyPrice) * 2}, nil
			}), hook.Target(GetPriceID))
		},
	)
	q, err := GetPrice(context.Background(), s.h, "mug", 1, "")
	c.Assert(err, gc.IsNil)
	c.Assert(q.Price, gc.Equals, 1800)
}

func (s *PricingSuite) TestTerminalQuote(c *gc.C) {
	fixed := &Quote{SKU: "mug", Qty: 1, Price: 1, Currency: "EUR"}
	s.boot(c, nil, func(m *plugin.Module) error {
		return m.Capture(hook.Func(func(ctx context.Context, st hook.State) (hook.Response, error) {
			return hook.Respond(fixed), nil
		}), hook.Target(GetPriceID))
	})
	q, err := GetPrice(context.Background(), s.h, "mug", 1, "")
	c.Assert(err, gc.IsNil)
	c.Assert(q, gc.Equals, fixed)
}

func (s *PricingSuite) TestComputeWithPercentOff(c *gc.C) {
	s.boot(c, nil, func(m *plugin.Module) error {
		return m.Capture(hook.Func(func(ctx context.Context, st hook.State) (hook.Response, error) {
			return hook.Replace(func(ctx context.Context, ch *hook.Chain, st hook.State) (hook.Result, error) {
				return Compute(ctx, m, ch, st, 25)
			}), nil
		}), hook.Target(GetPriceID))
	})
	q, err := GetPrice(context.Background(), s.h, "mug", 2, "")
	c.Assert(err, gc.IsNil)
	c.Assert(q.UnitPrice, gc.Equals, 600)
	c.Assert(q.Price, gc.Equals, 1200)
	c.Assert(q.Currency, gc.Equals, "EUR")
}

func (s *PricingSuite) TestWithoutCatalog(c *gc.C) {
	s.h = plugin.NewHost()
	c.Assert(s.h.Install(Name), gc.IsNil)
	c.Assert(s.h.Boot(context.Background()), gc.IsNil)
	_, err := GetPrice(context.Background(), s.h, "mug", 1, "")
	c.Assert(errors.Cause(err), gc.Equals, plugin.ErrNoExtensionPoint)
}
