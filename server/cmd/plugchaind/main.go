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

package main

import (
	"flag"
	"syscall"

	"github.com/pkg/errors"

	"plugchain/server"
	"plugchain/server/cmd"
	_ "plugchain/shop"
)

func main() {
	flag.Parse()
	if flag.NArg() != 0 {
		flag.Usage()
		cmd.Die(errors.New("unexpected command line arguments"))
	}

	settings := cmd.Init(true)

	srv, err := server.NewServer(settings)
	if err != nil {
		cmd.Die(err)
	}

	if err := srv.Start(); err != nil {
		srv.Stop()
		cmd.Die(err)
	}

	cmd.Sigmap[syscall.SIGINT] = srv.Stop
	cmd.Sigmap[syscall.SIGTERM] = srv.Stop
	cmd.Sigmap[syscall.SIGUSR1] = srv.LogRotate
	cmd.HandleSignals()

	err = srv.Wait()
	if err != server.ErrStopping {
		cmd.Die(err)
	}
	cmd.Die(nil)
}
