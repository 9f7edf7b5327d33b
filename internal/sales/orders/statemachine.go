package orders

import (
	"fmt"

	"github.com/ferreexpress/ferreexpress/internal/shared"
)

// effect is the side effect a transition applies inside its transaction.
type effect int

const (
	effectNone effect = iota
	effectRestock
	effectStampShipped
	effectStampDelivered
)

type transition struct {
	from Status
	to   Status
}

type rule struct {
	allowOwner bool
	effect     effect
}

// transitions lists every permitted status change. Admins may perform all of
// them; allowOwner extends a rule to the order's owner. Anything absent is
// forbidden, including every move out of a terminal status.
var transitions = map[transition]rule{
	{StatusPending, StatusConfirmed}:   {},
	{StatusPending, StatusCancelled}:   {allowOwner: true, effect: effectRestock},
	{StatusConfirmed, StatusShipped}:   {effect: effectStampShipped},
	{StatusConfirmed, StatusCancelled}: {allowOwner: true, effect: effectRestock},
	{StatusShipped, StatusDelivered}:   {effect: effectStampDelivered},
}

// authorize returns the rule for moving o to target on behalf of actor.
func authorize(actor shared.Principal, o Order, target Status) (rule, error) {
	if o.Status.Terminal() {
		return rule{}, fmt.Errorf("%w: order %d is %s", shared.ErrForbiddenTransition, o.ID, o.Status)
	}
	r, ok := transitions[transition{from: o.Status, to: target}]
	if !ok {
		return rule{}, fmt.Errorf("%w: %s -> %s", shared.ErrForbiddenTransition, o.Status, target)
	}
	if actor.IsAdmin() || (r.allowOwner && actor.ID == o.OwnerID) {
		return r, nil
	}
	return rule{}, fmt.Errorf("%w: %s -> %s requires admin", shared.ErrForbiddenTransition, o.Status, target)
}
