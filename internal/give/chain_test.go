package give_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"placecraft/internal/give"
)

type item struct {
	name     string
	obtained bool
	async    bool
	pending  func()
	log      *[]string
	seen     give.Info
}

func (i *item) Obtained() bool { return i.obtained }

func (i *item) Give(info give.Info) {
	*i.log = append(*i.log, i.name)
	i.obtained = true
	i.seen = info
	if i.async {
		i.pending = info.Callback
		return
	}
	info.Callback()
}

func items(log *[]string, names ...string) []*item {
	out := make([]*item, 0, len(names))
	for _, n := range names {
		out = append(out, &item{name: n, log: log})
	}
	return out
}

func grantables(in []*item) []give.Grantable {
	out := make([]give.Grantable, len(in))
	for i, it := range in {
		out[i] = it
	}
	return out
}

func TestChain_SynchronousGrants(t *testing.T) {
	var log []string
	its := items(&log, "A", "B", "C")
	its[1].obtained = true

	done := 0
	c := give.Start(grantables(its), give.Info{Placement: "Cloak"}, func() { done++ })

	assert.Equal(t, []string{"A", "C"}, log)
	assert.True(t, c.Done())
	assert.Equal(t, 1, done)
	assert.Equal(t, 2, c.Dispatched())
	assert.Equal(t, "Cloak", its[0].seen.Placement)
}

func TestChain_AsyncGrantsSuspend(t *testing.T) {
	var log []string
	its := items(&log, "A", "B")
	for _, it := range its {
		it.async = true
	}

	done := false
	c := give.Start(grantables(its), give.Info{}, func() { done = true })

	require.Equal(t, []string{"A"}, log)
	assert.True(t, c.InFlight())
	assert.False(t, c.Done())

	its[0].pending()
	require.Equal(t, []string{"A", "B"}, log)
	assert.False(t, done)

	its[1].pending()
	assert.True(t, done)
	assert.True(t, c.Done())
	assert.False(t, c.InFlight())
}

func TestChain_StaleCallbackIgnored(t *testing.T) {
	var log []string
	its := items(&log, "A", "B", "C")
	for _, it := range its {
		it.async = true
	}
	give.Start(grantables(its), give.Info{}, nil)

	first := its[0].pending
	first()
	first()
	assert.Equal(t, []string{"A", "B"}, log)
}

func TestChain_NothingToGive(t *testing.T) {
	var log []string
	its := items(&log, "A")
	its[0].obtained = true

	done := 0
	c := give.Start(grantables(its), give.Info{}, func() { done++ })
	assert.Empty(t, log)
	assert.Equal(t, 1, done)
	assert.True(t, c.Done())

	c.Resume()
	assert.Equal(t, 1, done)
}

func TestChain_NilDoneAndObserver(t *testing.T) {
	var log []string
	its := items(&log, "A", "B")

	var observed []int
	c := give.Start(grantables(its), give.Info{}, nil, give.WithObserver(func(idx int, _ give.Grantable) {
		observed = append(observed, idx)
	}))
	assert.True(t, c.Done())
	assert.Equal(t, []int{0, 1}, observed)
}

func TestChain_LongListDoesNotRecurse(t *testing.T) {
	var log []string
	names := make([]string, 10000)
	for i := range names {
		names[i] = "x"
	}
	c := give.Start(grantables(items(&log, names...)), give.Info{}, nil)
	assert.True(t, c.Done())
	assert.Len(t, log, 10000)
}
