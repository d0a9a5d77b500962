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

package hook

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	log "github.com/sirupsen/logrus"
)

// State keys set by a ViewChain before dispatch.
const (
	KeyRequest = "request"
	KeyParams  = "params"
)

// ViewChain is a Chain bound to an HTTP entry point. Its terminal responses
// are finished outbound responses, represented as http.Handler values, and
// any link may answer the request with one.
type ViewChain struct {
	*Chain
}

// NewViewChain returns an unsealed view chain. The base implementation
// should produce an http.Handler, either as its Value or through a terminal
// execute link.
func NewViewChain(id string, base Base) *ViewChain {
	return &ViewChain{Chain: NewChain(id, base, TerminalIf(isResponse))}
}

func isResponse(v interface{}) bool {
	h, ok := v.(http.Handler)
	return ok && h != nil
}

// ServeHTTP implements http.Handler.
func (v *ViewChain) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	v.serve(w, r, nil)
}

// Route adapts the chain to an httprouter handle; route parameters are
// available to links under KeyParams.
func (v *ViewChain) Route() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		v.serve(w, r, ps)
	}
}

func (v *ViewChain) serve(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	res, err := v.Handle(r.Context(), State{KeyRequest: r, KeyParams: ps})
	if err != nil {
		log.WithFields(log.Fields{
			"view":  v.ID(),
			"path":  r.URL.Path,
			"error": err,
		}).Errorf("%+v", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h, ok := res.Value.(http.Handler)
	if !ok || h == nil {
		log.WithFields(log.Fields{
			"view": v.ID(),
			"path": r.URL.Path,
		}).Errorf("view produced %T, not a response", res.Value)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.ServeHTTP(w, r)
}

// Request returns the inbound request of a view dispatch.
func Request(st State) *http.Request {
	r, _ := st[KeyRequest].(*http.Request)
	return r
}

// Params returns the route parameters of a view dispatch.
func Params(st State) httprouter.Params {
	ps, _ := st[KeyParams].(httprouter.Params)
	return ps
}

// JSON returns a response writing v as a JSON document.
func JSON(status int, v interface{}) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(v); err != nil {
			log.Warningf("failed to encode response for %q: %v", r.URL.Path, err)
		}
	})
}

// Status returns a plain-text response with the standard status text.
func Status(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(code), code)
	})
}
