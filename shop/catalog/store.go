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
	"encoding/json"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var ErrNotFound = errors.New("product not found")

const productPrefix = "product:"

// Product is a catalog entry. Prices are in minor currency units.
type Product struct {
	SKU   string `json:"sku"`
	Name  string `json:"name"`
	Price int    `json:"price"`
	Stock int    `json:"stock"`
}

// Store keeps products in a LevelDB database with an LRU read cache in
// front of it.
type Store struct {
	db    *leveldb.DB
	cache *lru.Cache
}

// OpenStore opens or creates the database at path.
func OpenStore(path string, cacheSize int) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open catalog database %q", path)
	}
	return newStore(db, cacheSize)
}

// NewMemStore returns a store backed by an in-memory database.
func NewMemStore(cacheSize int) (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return newStore(db, cacheSize)
}

func newStore(db *leveldb.DB, cacheSize int) (*Store, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		db.Close()
		return nil, errors.WithStack(err)
	}
	return &Store{db: db, cache: cache}, nil
}

func productKey(sku string) []byte {
	return []byte(productPrefix + sku)
}

// Get returns a copy of the product with the given SKU.
func (s *Store) Get(sku string) (*Product, error) {
	if v, ok := s.cache.Get(sku); ok {
		p := v.(Product)
		return &p, nil
	}
	data, err := s.db.Get(productKey(sku), nil)
	if err == leveldb.ErrNotFound {
		return nil, errors.Wrapf(ErrNotFound, "%q", sku)
	} else if err != nil {
		return nil, errors.WithStack(err)
	}
	var p Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrapf(err, "corrupt catalog entry %q", sku)
	}
	s.cache.Add(sku, p)
	return &p, nil
}

// Put stores p, replacing any product with the same SKU.
func (s *Store) Put(p *Product) error {
	if p.SKU == "" {
		return errors.New("product without SKU")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := s.db.Put(productKey(p.SKU), data, nil); err != nil {
		return errors.WithStack(err)
	}
	s.cache.Add(p.SKU, *p)
	return nil
}

// Delete removes a product. Deleting a missing product is not an error.
func (s *Store) Delete(sku string) error {
	s.cache.Remove(sku)
	return errors.WithStack(s.db.Delete(productKey(sku), nil))
}

// List returns all products ordered by SKU.
func (s *Store) List() ([]*Product, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(productPrefix)), nil)
	defer iter.Release()
	var products []*Product
	for iter.Next() {
		var p Product
		if err := json.Unmarshal(iter.Value(), &p); err != nil {
			return nil, errors.Wrapf(err, "corrupt catalog entry %q", iter.Key())
		}
		products = append(products, &p)
	}
	return products, errors.WithStack(iter.Error())
}

// Close closes the database.
func (s *Store) Close() error {
	s.cache.Purge()
	return errors.WithStack(s.db.Close())
}
