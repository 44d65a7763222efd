package watch

import "context"

// Subscriber is the pub/sub side of the watch set: subscriptions are
// opened when a key gains its first holder and dropped when the last
// holder leaves.
type Subscriber interface {
	Subscribe(ctx context.Context, key string) error
	Unsubscribe(ctx context.Context, key string) error
}

type Controller struct {
	set *Set
	sub Subscriber
}

func NewController(set *Set, sub Subscriber) *Controller {
	return &Controller{set: set, sub: sub}
}

func (c *Controller) Add(ctx context.Context, key, holderID string) error {
	if c.set.Add(key, holderID) {
		return c.sub.Subscribe(ctx, key)
	}
	return nil
}

func (c *Controller) Remove(ctx context.Context, key, holderID string) error {
	if c.set.Remove(key, holderID) {
		return c.sub.Unsubscribe(ctx, key)
	}
	return nil
}

func (c *Controller) Set() *Set { return c.set }
