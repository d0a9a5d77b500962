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

package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"plugchain/plugin"
)

// NewPluginHost builds the plugin host described by settings, installs the
// enabled modules in their configured order and boots them.
func NewPluginHost(ctx context.Context, settings *Settings) (*plugin.Host, error) {
	h := plugin.NewHost(
		plugin.WithConfigs(settings.Plugins.Config),
		plugin.WithDataDir(settings.DataDir),
		plugin.StrictLinks(settings.Plugins.StrictLinks),
	)
	if err := h.Install(settings.Plugins.Enabled...); err != nil {
		h.Close()
		return nil, errors.WithStack(err)
	}
	serverMetrics.modulesInstalled.Set(float64(len(h.Modules())))
	if err := h.Boot(ctx); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

// viewPath maps the view "<namespace>.<name>" to "<prefix>/<namespace>/<name>".
func viewPath(prefix, id string) string {
	i := strings.LastIndex(id, ".")
	return strings.TrimSuffix(prefix, "/") + "/" + id[:i] + "/" + id[i+1:]
}

// mountViews serves every view chain of h on r, under prefix and at the
// routes modules asked for. Under prefix a view answers the methods of its
// routes, or GET when it has none.
func mountViews(r *httprouter.Router, h *plugin.Host, prefix string) {
	methods := make(map[string][]string)
	for _, rt := range h.Routes() {
		id := rt.View.ID()
		if !slices.Contains(methods[id], rt.Method) {
			methods[id] = append(methods[id], rt.Method)
		}
	}
	if prefix != "" {
		for _, v := range h.Views() {
			path := viewPath(prefix, v.ID())
			viewMethods, ok := methods[v.ID()]
			if !ok {
				viewMethods = []string{http.MethodGet}
			}
			for _, method := range viewMethods {
				r.Handle(method, path, v.Route())
				log.WithFields(log.Fields{
					"view":   v.ID(),
					"method": method,
					"path":   path,
				}).Debug("view mounted")
			}
		}
	}
	for _, rt := range h.Routes() {
		r.Handle(rt.Method, rt.Path, rt.View.Route())
		log.WithFields(log.Fields{
			"view":   rt.View.ID(),
			"method": rt.Method,
			"path":   rt.Path,
		}).Debug("view route registered")
	}
}
