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

	"plugchain/plugin"
)

func init() {
	RegisterBackend("memory", func(plugin.Config) (Backend, error) {
		return NewMemoryBackend(), nil
	})
}

// MemoryBackend keeps carts in process memory.
type MemoryBackend struct {
	mu    sync.RWMutex
	carts map[string]*Cart
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{carts: make(map[string]*Cart)}
}

func (b *MemoryBackend) Get(ctx context.Context, id string) (*Cart, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if c, ok := b.carts[id]; ok {
		return c.clone(), nil
	}
	return &Cart{ID: id}, nil
}

func (b *MemoryBackend) Save(ctx context.Context, c *Cart) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.carts[c.ID] = c.clone()
	return nil
}

func (b *MemoryBackend) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.carts, id)
	return nil
}

func (b *MemoryBackend) Close() error {
	return nil
}
