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

// Package catalog owns the product store and the catalog.get_product
// extension point.
package catalog

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"

	"plugchain/hook"
	"plugchain/plugin"
)

const (
	Name = "catalog"

	ActionOpenStore = "catalog.open_store"
	GetProductID    = "catalog.get_product"

	KeySKU     = "sku"
	KeyProduct = "product"

	defaultCacheSize = 256
)

var errNotOpen = errors.New("catalog store is not open")

func init() {
	plugin.Provide(Name, Install)
}

type catalog struct {
	m     *plugin.Module
	store *Store
}

// Install registers the catalog module with m.
func Install(m *plugin.Module) error {
	c := &catalog{m: m}
	if err := m.Action("open_store", c.openStore); err != nil {
		return err
	}
	_, err := m.Declare("get_product", c.getProduct)
	return err
}

func (c *catalog) openStore(ctx context.Context) error {
	cfg := c.m.Config()
	size := cfg.Int("cacheSize", defaultCacheSize)
	path := cfg.String("path", "")
	if path == "" && c.m.DataDir() != "" {
		path = filepath.Join(c.m.DataDir(), "catalog.db")
	}
	var (
		st  *Store
		err error
	)
	if path == "" {
		st, err = NewMemStore(size)
	} else {
		st, err = OpenStore(path, size)
	}
	if err != nil {
		return err
	}
	c.m.OnClose(st)

	seed, err := seedProducts(cfg)
	if err != nil {
		return err
	}
	for _, p := range seed {
		if err := st.Put(p); err != nil {
			return err
		}
	}
	c.store = st
	c.m.Logger().WithField("path", path).Infof("catalog open, %d products seeded", len(seed))
	return nil
}

func (c *catalog) getProduct(ctx context.Context, ch *hook.Chain, st hook.State) (hook.Result, error) {
	if c.store == nil {
		return hook.Result{}, errors.WithStack(errNotOpen)
	}
	p, err := c.store.Get(st.String(KeySKU))
	if err != nil && errors.Cause(err) != ErrNotFound {
		return hook.Result{}, err
	}
	if p != nil {
		st[KeyProduct] = p
	}
	return ch.Execute(ctx, st)
}

// seedProducts reads [[plugins.config.catalog.products]] tables.
func seedProducts(cfg plugin.Config) ([]*Product, error) {
	var tables []map[string]interface{}
	switch v := cfg["products"].(type) {
	case nil:
		return nil, nil
	case []map[string]interface{}:
		tables = v
	case []interface{}:
		for _, item := range v {
			t, ok := item.(map[string]interface{})
			if !ok {
				return nil, errors.Errorf("invalid catalog product entry %v", item)
			}
			tables = append(tables, t)
		}
	default:
		return nil, errors.Errorf("invalid catalog products %T", v)
	}
	products := make([]*Product, 0, len(tables))
	for _, t := range tables {
		pc := plugin.Config(t)
		p := &Product{
			SKU:   pc.String("sku", ""),
			Name:  pc.String("name", ""),
			Price: pc.Int("price", 0),
			Stock: pc.Int("stock", 0),
		}
		if p.SKU == "" {
			return nil, errors.Errorf("catalog product without sku: %v", t)
		}
		products = append(products, p)
	}
	return products, nil
}

// GetProduct looks a product up through the catalog.get_product extension
// point.
func GetProduct(ctx context.Context, src plugin.Chains, sku string) (*Product, error) {
	res, err := plugin.Dispatch(ctx, src, GetProductID, hook.State{KeySKU: sku})
	if err != nil {
		return nil, err
	}
	if res.Terminal {
		if err, ok := res.Value.(error); ok {
			return nil, err
		}
	}
	p, ok := res.State[KeyProduct].(*Product)
	if !ok || p == nil {
		return nil, errors.Wrapf(ErrNotFound, "%q", sku)
	}
	return p, nil
}
