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

// Package checkout turns carts into paid orders through the checkout.pay
// extension point.
package checkout

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/jmcvetta/randutil"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"plugchain/hook"
	"plugchain/loader"
	"plugchain/plugin"
	"plugchain/shop/cart"
	"plugchain/shop/pricing"
)

const (
	Name = "checkout"

	ActionOpenLedger = "checkout.open_ledger"
	PayID            = "checkout.pay"

	KeyCartID  = "cart_id"
	KeyCoupon  = "coupon"
	KeyReceipt = "receipt"

	refAlphabet       = "ABCDEFGHJKLMNPQRSTUVWXYZ" + randutil.Numerals
	refLength         = 10
	defaultLedgerSize = 4096
)

var (
	ErrEmptyCart = errors.New("cart is empty")
	errNotOpen   = errors.New("checkout ledger is not open")
)

// Receipt records a payment.
type Receipt struct {
	Ref         string      `json:"ref"`
	CartID      string      `json:"cart_id"`
	Items       []cart.Item `json:"items"`
	Total       int         `json:"total"`
	Currency    string      `json:"currency"`
	PaidAt      time.Time   `json:"paid_at"`
	AlreadyPaid bool        `json:"already_paid,omitempty"`
}

func init() {
	plugin.Provide(Name, Install)
}

type ledger struct {
	m        *plugin.Module
	receipts *lru.Cache
}

// Install registers the checkout module with m.
func Install(m *plugin.Module) error {
	l := &ledger{m: m}
	err := m.Action("open_ledger", l.open, loader.After(cart.ActionOpenBackend))
	if err != nil {
		return err
	}
	if _, err := m.Declare("pay", l.pay); err != nil {
		return err
	}
	if err := m.Link(hook.Func(l.AddItem), hook.Target(cart.AddItemID)); err != nil {
		return err
	}
	return m.Capture(hook.Func(l.Pay))
}

func (l *ledger) open(ctx context.Context) error {
	receipts, err := lru.New(l.m.Config().Int("ledgerSize", defaultLedgerSize))
	if err != nil {
		return errors.WithStack(err)
	}
	l.receipts = receipts
	return nil
}

// Pay answers with the earlier receipt when the cart was already paid.
func (l *ledger) Pay(ctx context.Context, st hook.State) (hook.Response, error) {
	if l.receipts == nil {
		return nil, errors.WithStack(errNotOpen)
	}
	v, ok := l.receipts.Get(st.String(KeyCartID))
	if !ok {
		return hook.Continue, nil
	}
	r := *v.(*Receipt)
	r.AlreadyPaid = true
	return hook.Respond(&r), nil
}

// AddItem forgets the receipt of a paid cart once it is filled again, so the
// new contents can be paid for.
func (l *ledger) AddItem(ctx context.Context, st hook.State) (hook.Response, error) {
	if l.receipts != nil {
		l.receipts.Remove(st.String(cart.KeyCartID))
	}
	return hook.Continue, nil
}

// Base prices every cart line, records the receipt and empties the cart.
func (l *ledger) pay(ctx context.Context, ch *hook.Chain, st hook.State) (hook.Result, error) {
	id := st.String(KeyCartID)
	c, err := cart.Get(ctx, l.m, id)
	if err != nil {
		return hook.Result{}, err
	}
	if c == nil || len(c.Items) == 0 {
		return hook.Result{}, errors.Wrapf(ErrEmptyCart, "%q", id)
	}

	receipt := &Receipt{CartID: id, Items: c.Items}
	for _, it := range c.Items {
		q, err := pricing.GetPrice(ctx, l.m, it.SKU, it.Qty, st.String(KeyCoupon))
		if err != nil {
			return hook.Result{}, errors.Wrapf(err, "failed to price %s", it.SKU)
		}
		receipt.Total += q.Price
		receipt.Currency = q.Currency
	}
	receipt.Ref, err = randutil.String(refLength, refAlphabet)
	if err != nil {
		return hook.Result{}, errors.WithStack(err)
	}
	receipt.PaidAt = time.Now().UTC()

	st[KeyReceipt] = receipt
	res, err := ch.Execute(ctx, st)
	if err != nil || res.Terminal {
		return res, err
	}
	l.receipts.Add(id, receipt)
	if err := cart.Clear(ctx, l.m, id); err != nil {
		return hook.Result{}, err
	}
	l.m.Logger().WithFields(log.Fields{
		"ref":   receipt.Ref,
		"total": receipt.Total,
	}).Info("order paid")
	res.Value = res.State[KeyReceipt]
	return res, nil
}

// Pay checks out the cart through checkout.pay. A receipt for a cart that
// was paid before has AlreadyPaid set.
func Pay(ctx context.Context, src plugin.Chains, cartID, coupon string) (*Receipt, error) {
	st := hook.State{KeyCartID: cartID}
	if coupon != "" {
		st[KeyCoupon] = coupon
	}
	res, err := plugin.Dispatch(ctx, src, PayID, st)
	if err != nil {
		return nil, err
	}
	if err, ok := res.Value.(error); ok && res.Terminal {
		return nil, err
	}
	r, ok := res.Value.(*Receipt)
	if !ok {
		return nil, errors.Errorf("checkout produced %T, not a receipt", res.Value)
	}
	return r, nil
}
