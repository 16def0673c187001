package pager

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// numberSource serves pageCount pages of two records each.
func numberSource(pageCount int, calls *int) FetchFunc[string] {
	return func(_ context.Context, state State) ([]string, State, error) {
		*calls++
		records := []string{
			fmt.Sprintf("p%d-a", state.Number),
			fmt.Sprintf("p%d-b", state.Number),
		}
		return records, NextNumber(state, pageCount), nil
	}
}

// tokenSource chains tokens t1..tN-1 and ends with an empty token.
func tokenSource(pages int, calls *int, seen *[]string) FetchFunc[int] {
	return func(_ context.Context, state State) ([]int, State, error) {
		*calls++
		*seen = append(*seen, state.Token)
		next := ""
		if *calls < pages {
			next = fmt.Sprintf("t%d", *calls)
		}
		return []int{*calls}, NextToken(next), nil
	}
}

func TestNumberCursorYieldsOneBatchPerPage(t *testing.T) {
	for _, pages := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("%d pages", pages), func(t *testing.T) {
			calls := 0
			c := New(numberSource(pages, &calls), First(NumberStyle))

			batches := 0
			for c.Next(context.Background()) {
				batches++
				assert.Len(t, c.Batch(), 2)
			}

			require.NoError(t, c.Err())
			assert.Equal(t, pages, batches)
			assert.Equal(t, pages, calls)
			assert.Equal(t, pages, c.Pages())
			assert.True(t, c.State().Exhausted())
			assert.False(t, c.Next(context.Background()), "cursor must not restart")
			assert.Equal(t, pages, calls)
		})
	}
}

func TestNumberCursorZeroPageCountStopsAfterFirstFetch(t *testing.T) {
	calls := 0
	fetch := func(_ context.Context, state State) ([]string, State, error) {
		calls++
		return nil, NextNumber(state, 0), nil
	}
	c := New(fetch, First(NumberStyle))

	require.True(t, c.Next(context.Background()))
	assert.Empty(t, c.Batch())
	assert.False(t, c.Next(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestTokenCursorFollowsTokensUntilEmpty(t *testing.T) {
	calls := 0
	var seen []string
	c := New(tokenSource(3, &calls, &seen), First(TokenStyle))

	all, err := Drain(context.Background(), c)

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, all)
	assert.Equal(t, []string{"", "t1", "t2"}, seen)
	assert.Equal(t, 3, calls)
}

func TestCursorToleratesEmptyBatches(t *testing.T) {
	responses := [][]string{{"a"}, {}, {"b"}}
	i := 0
	fetch := func(_ context.Context, _ State) ([]string, State, error) {
		records := responses[i]
		i++
		next := ""
		if i < len(responses) {
			next = "more"
		}
		return records, NextToken(next), nil
	}

	all, err := Drain(context.Background(), New(fetch, First(TokenStyle)))

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, all)
}

func TestCursorStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	fetch := func(_ context.Context, state State) ([]string, State, error) {
		calls++
		if calls == 2 {
			return nil, state, boom
		}
		return []string{"x"}, NextToken("next"), nil
	}
	c := New(fetch, First(TokenStyle))

	assert.True(t, c.Next(context.Background()))
	assert.False(t, c.Next(context.Background()))
	assert.ErrorIs(t, c.Err(), boom)
	assert.Nil(t, c.Batch())
	assert.False(t, c.Next(context.Background()))
	assert.Equal(t, 2, calls)
}

func TestCursorWithoutFetch(t *testing.T) {
	c := New[string](nil, First(TokenStyle))

	assert.False(t, c.Next(context.Background()))
	assert.ErrorIs(t, c.Err(), ErrNoFetch)
}

func TestStateExhausted(t *testing.T) {
	assert.False(t, First(NumberStyle).Exhausted())
	assert.False(t, NextNumber(State{Number: 1}, 2).Exhausted())
	assert.True(t, NextNumber(State{Number: 2}, 2).Exhausted())
	assert.False(t, NextToken("abc").Exhausted())
}
