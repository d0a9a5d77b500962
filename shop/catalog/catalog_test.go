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

package catalog

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	gc "gopkg.in/check.v1"

	"plugchain/hook"
	"plugchain/plugin"
)

type CatalogSuite struct{}

var _ = gc.Suite(&CatalogSuite{})

func testConfig() plugin.Config {
	return plugin.Config{
		"products": []map[string]interface{}{
			{"sku": "mug", "name": "Mug", "price": int64(800), "stock": int64(5)},
			{"sku": "tee", "name": "T-shirt", "price": int64(1500)},
		},
	}
}

func (s *CatalogSuite) boot(c *gc.C, h *plugin.Host, modules ...plugin.Installer) {
	c.Assert(h.Install(Name), gc.IsNil)
	for i, inst := range modules {
		c.Assert(h.InstallFunc("ext"+string(rune('a'+i)), inst), gc.IsNil)
	}
	c.Assert(h.Boot(context.Background()), gc.IsNil)
}

func (s *CatalogSuite) TestGetProduct(c *gc.C) {
	h := plugin.NewHost(plugin.WithConfig(Name, testConfig()))
	defer h.Close()
	s.boot(c, h)

	p, err := GetProduct(context.Background(), h, "tee")
	c.Assert(err, gc.IsNil)
	c.Assert(p, gc.DeepEquals, &Product{SKU: "tee", Name: "T-shirt", Price: 1500})

	_, err = GetProduct(context.Background(), h, "hat")
	c.Assert(errors.Cause(err), gc.Equals, ErrNotFound)
}

func (s *CatalogSuite) TestStoreUnderDataDir(c *gc.C) {
	dir := c.MkDir()
	h := plugin.NewHost(plugin.WithDataDir(dir), plugin.WithConfig(Name, testConfig()))
	s.boot(c, h)
	c.Assert(h.Close(), gc.IsNil)

	st, err := OpenStore(filepath.Join(dir, Name, "catalog.db"), 4)
	c.Assert(err, gc.IsNil)
	defer st.Close()
	products, err := st.List()
	c.Assert(err, gc.IsNil)
	c.Assert(products, gc.HasLen, 2)
}

func (s *CatalogSuite) TestLinksSeeProduct(c *gc.C) {
	h := plugin.NewHost(plugin.WithConfig(Name, testConfig()))
	defer h.Close()
	// A module hiding products that are out of stock.
	s.boot(c, h, func(m *plugin.Module) error {
		return m.Link(hook.Func(func(ctx context.Context, st hook.State) (hook.Response, error) {
			if p, ok := st[KeyProduct].(*Product); ok && p.Stock == 0 {
				return hook.Merge{KeyProduct: nil}, nil
			}
			return hook.Continue, nil
		}), hook.Target(GetProductID))
	})

	_, err := GetProduct(context.Background(), h, "tee")
	c.Assert(errors.Cause(err), gc.Equals, ErrNotFound)
	p, err := GetProduct(context.Background(), h, "mug")
	c.Assert(err, gc.IsNil)
	c.Assert(p.Stock, gc.Equals, 5)
}

func (s *CatalogSuite) TestCaptureRejects(c *gc.C) {
	h := plugin.NewHost(plugin.WithConfig(Name, testConfig()))
	defer h.Close()
	embargo := errors.New("embargoed")
	s.boot(c, h, func(m *plugin.Module) error {
		return m.Capture(hook.Func(func(ctx context.Context, st hook.State) (hook.Response, error) {
			if st.String(KeySKU) == "mug" {
				return hook.Respond(embargo), nil
			}
			return hook.Continue, nil
		}), hook.Target(GetProductID))
	})
	_, err := GetProduct(context.Background(), h, "mug")
	c.Assert(err, gc.Equals, embargo)
}

func (s *CatalogSuite) TestBadSeed(c *gc.C) {
	h := plugin.NewHost(plugin.WithConfig(Name, plugin.Config{
		"products": []interface{}{map[string]interface{}{"name": "nameless"}},
	}))
	defer h.Close()
	c.Assert(h.Install(Name), gc.IsNil)
	err := h.Boot(context.Background())
	c.Assert(err, gc.ErrorMatches, `boot failed: boot action catalog.open_store failed: catalog product without sku: .*`)
}

func (s *CatalogSuite) TestDispatchBeforeBoot(c *gc.C) {
	h := plugin.NewHost()
	c.Assert(h.Install(Name), gc.IsNil)
	_, err := GetProduct(context.Background(), h, "mug")
	c.Assert(errors.Cause(err), gc.Equals, errNotOpen)
}
