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

// Package shop links every shop module into the binary. Import it for its
// side effects; the host installs the modules its settings enable.
package shop

import (
	_ "plugchain/shop/cart"
	_ "plugchain/shop/catalog"
	_ "plugchain/shop/checkout"
	_ "plugchain/shop/discount"
	_ "plugchain/shop/pricing"
	_ "plugchain/shop/tax"
	_ "plugchain/shop/views"
)
