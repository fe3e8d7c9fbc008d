// Package give delivers a placement's items one at a time. Each grant decides
// when it is finished by calling the continuation it was handed; only then
// does the next item start.
package give

import (
	"github.com/sirupsen/logrus"

	"placecraft/internal/container"
	"placecraft/internal/logger"
)

// MessageMode tells grant routines how loudly to announce an item.
type MessageMode int

const (
	MessageAny MessageMode = iota
	MessageSmall
	MessageNone
)

// Info is shared by every grant of a chain. Callback is replaced per item.
type Info struct {
	Placement string
	Container string
	Fling     container.Fling
	Message   MessageMode
	Callback  func()
}

// Grantable is an item the chain can deliver. Give must eventually call
// info.Callback (synchronously or later) for the chain to continue.
type Grantable interface {
	Obtained() bool
	Give(info Info)
}

type Option func(*Chain)

// WithObserver runs fn right before each grant is dispatched.
func WithObserver(fn func(index int, item Grantable)) Option {
	return func(c *Chain) { c.observer = fn }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Chain) { c.log = log }
}

// Chain is a resumable cursor over the items. It is not safe for concurrent
// use; grant routines resume it from the host's update loop.
type Chain struct {
	items    []Grantable
	info     Info
	done     func()
	observer func(int, Grantable)
	log      logrus.FieldLogger

	next       int
	token      uint64
	inFlight   bool
	running    bool
	pending    bool
	finished   bool
	dispatched int
}

// Start builds a chain and dispatches the first unobtained item. done runs
// once the items are exhausted; it may be nil.
func Start(items []Grantable, info Info, done func(), opts ...Option) *Chain {
	c := &Chain{items: items, info: info, done: done}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.Resume()
	return c
}

// Resume advances to the next unobtained item. Calling it while a grant is in
// flight completes that grant.
func (c *Chain) Resume() {
	if c.finished {
		return
	}
	c.inFlight = false
	if c.running {
		// A grant completed synchronously; the loop below picks it up.
		c.pending = true
		return
	}
	c.running = true
	defer func() { c.running = false }()

	for {
		c.pending = false
		idx, item, ok := c.advance()
		if !ok {
			c.finish()
			return
		}
		c.dispatch(idx, item)
		if !c.pending {
			return
		}
	}
}

// Done reports whether every item has been handled.
func (c *Chain) Done() bool { return c.finished }

// InFlight reports whether a grant is waiting to call back.
func (c *Chain) InFlight() bool { return c.inFlight }

// Dispatched counts grants handed to items so far.
func (c *Chain) Dispatched() int { return c.dispatched }

func (c *Chain) advance() (int, Grantable, bool) {
	for c.next < len(c.items) {
		idx := c.next
		item := c.items[idx]
		c.next++
		if item == nil || item.Obtained() {
			continue
		}
		return idx, item, true
	}
	return 0, nil, false
}

func (c *Chain) dispatch(idx int, item Grantable) {
	c.token++
	token := c.token
	info := c.info
	info.Callback = func() { c.complete(token) }

	c.inFlight = true
	c.dispatched++
	if c.observer != nil {
		c.observer(idx, item)
	}
	item.Give(info)
}

func (c *Chain) complete(token uint64) {
	if token != c.token || !c.inFlight {
		logger.Or(c.log).WithFields(logrus.Fields{
			"placement": c.info.Placement,
			"token":     token,
		}).Warn("ignoring stale give callback")
		return
	}
	c.Resume()
}

func (c *Chain) finish() {
	c.finished = true
	if c.done != nil {
		c.done()
	}
}
