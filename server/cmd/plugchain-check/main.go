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

// plugchain-check installs the enabled modules without booting them and
// prints the boot action order and the declared extension points.
package main

import (
	"flag"
	"fmt"

	"github.com/pkg/errors"

	"plugchain/plugin"
	"plugchain/server/cmd"
	_ "plugchain/shop"
)

func main() {
	flag.Parse()
	if flag.NArg() != 0 {
		flag.Usage()
		cmd.Die(errors.New("unexpected command line arguments"))
	}

	settings := cmd.Init(false)

	h := plugin.NewHost(
		plugin.WithConfigs(settings.Plugins.Config),
		plugin.StrictLinks(settings.Plugins.StrictLinks),
	)
	if err := h.Install(settings.Plugins.Enabled...); err != nil {
		cmd.Die(err)
	}
	order, err := h.Order()
	if err != nil {
		cmd.Die(err)
	}
	fmt.Println("boot actions:")
	for i, name := range order {
		fmt.Printf("  %2d. %s\n", i+1, name)
	}
	fmt.Println("extension points:")
	for _, id := range h.ExtensionPoints() {
		fmt.Printf("  %s\n", id)
	}
	cmd.Die(nil)
}
