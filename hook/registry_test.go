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

	"github.com/pkg/errors"
	gc "gopkg.in/check.v1"
)

type RegistrySuite struct {
	r *Registry
}

var _ = gc.Suite(&RegistrySuite{})

func (s *RegistrySuite) SetUpTest(c *gc.C) {
	s.r = NewRegistry()
}

func GetPrice(ctx context.Context, st State) (Response, error) {
	return Merge{"price": st.Int("price") + 10}, nil
}

func DoublePrice(ctx context.Context, st State) (Response, error) {
	return Merge{"price": st.Int("price") * 2}, nil
}

type taxLink struct{ rate int }

func (t taxLink) Invoke(ctx context.Context, st State, yield func(Response) bool) error {
	yield(Merge{"tax": st.Int("price") * t.rate / 100})
	return nil
}

func (t *taxLink) GetPrice(ctx context.Context, st State) (Response, error) {
	return Merge{"tax": st.Int("price") * t.rate / 100}, nil
}

func priceChain() *Chain {
	return NewChain("pricing.get_price", func(ctx context.Context, ch *Chain, st State) (Result, error) {
		st["price"] = 0
		return ch.Execute(ctx, st)
	})
}

func (s *RegistrySuite) TestInferredName(c *gc.C) {
	ch := priceChain()
	c.Assert(s.r.Declare(ch), gc.IsNil)
	c.Assert(s.r.Link(Func(GetPrice), Namespace("pricing")), gc.IsNil)
	c.Assert(s.r.Hookup(), gc.IsNil)

	res, err := ch.Handle(context.Background(), nil)
	c.Assert(err, gc.IsNil)
	c.Assert(res.State["price"], gc.Equals, 10)
}

func (s *RegistrySuite) TestInferredNameFromMethod(c *gc.C) {
	ch := priceChain()
	c.Assert(s.r.Declare(ch), gc.IsNil)
	t := &taxLink{rate: 20}
	c.Assert(s.r.Link(Func(GetPrice), Namespace("pricing")), gc.IsNil)
	c.Assert(s.r.Link(Func(t.GetPrice), Namespace("pricing")), gc.IsNil)
	c.Assert(s.r.Hookup(), gc.IsNil)

	res, err := ch.Handle(context.Background(), nil)
	c.Assert(err, gc.IsNil)
	c.Assert(res.State["tax"], gc.Equals, 2)
}

func (s *RegistrySuite) TestRegistrationOrderAcrossStages(c *gc.C) {
	ch := priceChain()
	c.Assert(s.r.Link(Func(GetPrice), Target("pricing.get_price")), gc.IsNil)
	c.Assert(s.r.Link(Func(DoublePrice), Target("pricing.get_price")), gc.IsNil)
	// Declaring after links were registered is fine; hookup binds them.
	c.Assert(s.r.Declare(ch), gc.IsNil)
	c.Assert(s.r.Hookup(), gc.IsNil)

	capture, execute := ch.Links()
	c.Assert(capture, gc.Equals, 0)
	c.Assert(execute, gc.Equals, 2)
	res, err := ch.Handle(context.Background(), nil)
	c.Assert(err, gc.IsNil)
	c.Assert(res.State["price"], gc.Equals, 20)
}

func (s *RegistrySuite) TestCaptureOrder(c *gc.C) {
	var calls []string
	mark := func(name string) Link {
		return Func(func(context.Context, State) (Response, error) {
			calls = append(calls, name)
			return Continue, nil
		})
	}
	ch := NewChain("views.index", nil)
	c.Assert(s.r.Declare(ch), gc.IsNil)
	c.Assert(s.r.Link(mark("c1"), Target("views.index"), Capture()), gc.IsNil)
	c.Assert(s.r.Link(mark("c2"), Target("views.index"), Capture()), gc.IsNil)
	c.Assert(s.r.Hookup(), gc.IsNil)
	_, err := ch.Handle(context.Background(), nil)
	c.Assert(err, gc.IsNil)
	c.Assert(calls, gc.DeepEquals, []string{"c2", "c1"})
}

func (s *RegistrySuite) TestClosureNeedsName(c *gc.C) {
	err := s.r.Link(Func(func(context.Context, State) (Response, error) {
		return Continue, nil
	}), Namespace("pricing"))
	c.Assert(errors.Cause(err), gc.Equals, ErrUnresolvedLink)
	c.Assert(err, gc.ErrorMatches, `cannot infer extension point name from .*func\d+: cannot resolve link target`)
}

func (s *RegistrySuite) TestStructLinkNeedsName(c *gc.C) {
	err := s.r.Link(taxLink{rate: 1}, Namespace("pricing"))
	c.Assert(errors.Cause(err), gc.Equals, ErrUnresolvedLink)
	c.Assert(s.r.Link(taxLink{rate: 1}, Target("pricing.get_price")), gc.IsNil)
}

func (s *RegistrySuite) TestMissingNamespace(c *gc.C) {
	err := s.r.Link(Func(GetPrice))
	c.Assert(errors.Cause(err), gc.Equals, ErrUnresolvedLink)
	c.Assert(err, gc.ErrorMatches, `no namespace for get_price: cannot resolve link target`)
}

func (s *RegistrySuite) TestNilLink(c *gc.C) {
	c.Assert(errors.Cause(s.r.Link(nil, Target("a.b"))), gc.Equals, ErrUnresolvedLink)
	var f Func
	c.Assert(errors.Cause(s.r.Link(f, Target("a.b"))), gc.Equals, ErrUnresolvedLink)
}

func (s *RegistrySuite) TestDuplicateChain(c *gc.C) {
	c.Assert(s.r.Declare(priceChain()), gc.IsNil)
	err := s.r.Declare(priceChain())
	c.Assert(errors.Cause(err), gc.Equals, ErrDuplicateChain)
}

func (s *RegistrySuite) TestInvalidID(c *gc.C) {
	for _, id := range []string{"", "pricing", ".get_price", "pricing."} {
		err := s.r.Declare(NewChain(id, nil))
		c.Check(errors.Cause(err), gc.Equals, ErrInvalidID, gc.Commentf("id %q", id))
	}
}

func (s *RegistrySuite) TestDanglingLinkDropped(c *gc.C) {
	ch := priceChain()
	c.Assert(s.r.Declare(ch), gc.IsNil)
	c.Assert(s.r.Link(Func(GetPrice), Namespace("pricing")), gc.IsNil)
	c.Assert(s.r.Link(Func(GetPrice), Namespace("loyalty")), gc.IsNil)
	c.Assert(s.r.Hookup(), gc.IsNil)
	_, execute := ch.Links()
	c.Assert(execute, gc.Equals, 1)
	_, ok := s.r.Chain("loyalty.get_price")
	c.Assert(ok, gc.Equals, false)
}

func (s *RegistrySuite) TestRequiredDanglingLinkFails(c *gc.C) {
	ch := priceChain()
	c.Assert(s.r.Declare(ch), gc.IsNil)
	c.Assert(s.r.Link(Func(GetPrice), Namespace("pricing")), gc.IsNil)
	c.Assert(s.r.Link(Func(DoublePrice), Target("loyalty.points"), Required()), gc.IsNil)
	err := s.r.Hookup()
	c.Assert(errors.Cause(err), gc.Equals, ErrDanglingLink)
	c.Assert(err, gc.ErrorMatches, `plugchain/hook.DoublePrice -> loyalty.points: .*`)
	// Nothing was attached.
	_, execute := ch.Links()
	c.Assert(execute, gc.Equals, 0)
}

func (s *RegistrySuite) TestFrozenAfterHookup(c *gc.C) {
	ch := priceChain()
	c.Assert(s.r.Declare(ch), gc.IsNil)
	c.Assert(s.r.Hookup(), gc.IsNil)
	c.Assert(errors.Cause(s.r.Link(Func(GetPrice), Namespace("pricing"))), gc.Equals, ErrFrozen)
	c.Assert(errors.Cause(s.r.Declare(NewChain("late.chain", nil))), gc.Equals, ErrFrozen)
	c.Assert(errors.Cause(s.r.Hookup()), gc.Equals, ErrFrozen)
	got, ok := s.r.Chain("pricing.get_price")
	c.Assert(ok, gc.Equals, true)
	c.Assert(got, gc.Equals, ch)
	c.Assert(s.r.IDs(), gc.DeepEquals, []string{"pricing.get_price"})
}
