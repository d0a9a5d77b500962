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
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
	gc "gopkg.in/check.v1"
)

type ViewSuite struct {
	baseCalls int
}

var _ = gc.Suite(&ViewSuite{})

func (s *ViewSuite) SetUpTest(c *gc.C) {
	s.baseCalls = 0
}

func (s *ViewSuite) greet(ctx context.Context, ch *Chain, st State) (Result, error) {
	s.baseCalls++
	res, err := ch.Execute(ctx, st)
	if err != nil || res.Terminal {
		return res, err
	}
	name := Params(st).ByName("name")
	if name == "" {
		name = res.State.String("name")
	}
	return Value(JSON(http.StatusOK, map[string]string{"hello": name}))
}

func (s *ViewSuite) router(v *ViewChain) *httprouter.Router {
	r := httprouter.New()
	r.GET("/hello/:name", v.Route())
	r.Handler("GET", "/hello", v)
	return r
}

func (s *ViewSuite) TestBaseResponse(c *gc.C) {
	v := NewViewChain("views.hello", s.greet)
	v.seal()
	w := httptest.NewRecorder()
	s.router(v).ServeHTTP(w, httptest.NewRequest("GET", "/hello/alice", nil))
	c.Assert(w.Code, gc.Equals, http.StatusOK)
	c.Assert(w.Body.String(), gc.Equals, "{\"hello\":\"alice\"}\n")
	c.Assert(w.Header().Get("Content-Type"), gc.Equals, "application/json")
}

func (s *ViewSuite) TestCaptureAnswersImmediately(c *gc.C) {
	v := NewViewChain("views.hello", s.greet)
	hookup(c, v.Chain, true, Func(func(ctx context.Context, st State) (Response, error) {
		if Request(st).Header.Get("Authorization") == "" {
			return Respond(Status(http.StatusUnauthorized)), nil
		}
		return Continue, nil
	}))
	v.seal()

	w := httptest.NewRecorder()
	s.router(v).ServeHTTP(w, httptest.NewRequest("GET", "/hello/bob", nil))
	c.Assert(w.Code, gc.Equals, http.StatusUnauthorized)
	c.Assert(s.baseCalls, gc.Equals, 0)

	req := httptest.NewRequest("GET", "/hello/bob", nil)
	req.Header.Set("Authorization", "yes")
	w = httptest.NewRecorder()
	s.router(v).ServeHTTP(w, req)
	c.Assert(w.Code, gc.Equals, http.StatusOK)
	c.Assert(s.baseCalls, gc.Equals, 1)
}

func (s *ViewSuite) TestExecuteLinkAnswers(c *gc.C) {
	v := NewViewChain("views.hello", s.greet)
	hookup(c, v.Chain, false,
		Func(func(ctx context.Context, st State) (Response, error) {
			return Merge{"name": "plain"}, nil
		}),
	)
	v.seal()
	w := httptest.NewRecorder()
	s.router(v).ServeHTTP(w, httptest.NewRequest("GET", "/hello", nil))
	c.Assert(w.Code, gc.Equals, http.StatusOK)
	c.Assert(w.Body.String(), gc.Equals, "{\"hello\":\"plain\"}\n")
}

func (s *ViewSuite) TestOverrideView(c *gc.C) {
	v := NewViewChain("views.hello", s.greet)
	hookup(c, v.Chain, true, Func(func(ctx context.Context, st State) (Response, error) {
		return Replace(func(ctx context.Context, ch *Chain, st State) (Result, error) {
			return Value(http.RedirectHandler("/elsewhere", http.StatusFound))
		}), nil
	}))
	v.seal()
	w := httptest.NewRecorder()
	s.router(v).ServeHTTP(w, httptest.NewRequest("GET", "/hello/x", nil))
	c.Assert(w.Code, gc.Equals, http.StatusFound)
	c.Assert(w.Header().Get("Location"), gc.Equals, "/elsewhere")
	c.Assert(s.baseCalls, gc.Equals, 0)
}

func (s *ViewSuite) TestTerminalMustBeResponse(c *gc.C) {
	v := NewViewChain("views.hello", s.greet)
	hookup(c, v.Chain, true, Func(func(ctx context.Context, st State) (Response, error) {
		return Respond("not a response"), nil
	}))
	v.seal()
	_, err := v.Handle(context.Background(), nil)
	c.Assert(errors.Cause(err), gc.Equals, ErrUnexpectedResponse)

	w := httptest.NewRecorder()
	s.router(v).ServeHTTP(w, httptest.NewRequest("GET", "/hello/x", nil))
	c.Assert(w.Code, gc.Equals, http.StatusInternalServerError)
}

func (s *ViewSuite) TestBaseWithoutResponse(c *gc.C) {
	v := NewViewChain("views.empty", nil)
	v.seal()
	w := httptest.NewRecorder()
	v.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	c.Assert(w.Code, gc.Equals, http.StatusInternalServerError)
}
