package instrument

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type addArgs struct {
	a, b int
}

func add(args addArgs) int { return args.a + args.b }

func TestRecorderReturnsTargetResultAndRecordsArgs(t *testing.T) {
	rec := Wrap(add)

	assert.Equal(t, 3, rec.Call(addArgs{1, 2}))
	assert.Equal(t, 7, rec.Call(addArgs{3, 4}))

	assert.Equal(t, 2, rec.Count())
	assert.Equal(t, []addArgs{{1, 2}, {3, 4}}, rec.Calls())
}

func TestRecorderCountMatchesCallsForAnySequence(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		inputs := rapid.SliceOf(rapid.Int()).Draw(rt, "inputs")
		rec := Wrap(func(n int) int { return n * 2 })
		for _, n := range inputs {
			rec.Call(n)
		}
		if rec.Count() != len(inputs) {
			rt.Fatalf("count %d, expected %d", rec.Count(), len(inputs))
		}
		calls := rec.Calls()
		if len(calls) != len(inputs) {
			rt.Fatalf("recorded %d calls, expected %d", len(calls), len(inputs))
		}
		for i := range inputs {
			if calls[i] != inputs[i] {
				rt.Fatalf("call %d was %d, expected %d", i, calls[i], inputs[i])
			}
		}
	})
}

func TestRecorderIsSafeForConcurrentCallers(t *testing.T) {
	rec := Wrap(func(n int) error { return nil })
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = rec.Call(n)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1000, rec.Count())
	assert.Len(t, rec.Calls(), 1000)
}

func TestRecorderDoesNotRecordPanickingCall(t *testing.T) {
	rec := Wrap(func(string) error { panic(errors.New("boom")) })

	require.Panics(t, func() { rec.Call("x") })
	assert.Equal(t, 0, rec.Count())
}

func TestRecorderCallsReturnsCopy(t *testing.T) {
	rec := Wrap(add)
	rec.Call(addArgs{1, 1})
	calls := rec.Calls()
	calls[0] = addArgs{9, 9}

	assert.Equal(t, []addArgs{{1, 1}}, rec.Calls())
}
