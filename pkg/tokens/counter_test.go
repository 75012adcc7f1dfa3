package tokens

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEstimate(t *testing.T) {
	require.Equal(t, 0, Estimate(""))
	require.Equal(t, 1, Estimate("hi"))
	require.Equal(t, 3, Estimate("twelve chars"))
}

func TestCountBlankText(t *testing.T) {
	c := NewCounter("gpt-4o-mini")
	require.Zero(t, c.Count("   "))
}

func TestTrimToBudgetKeepsNewestItems(t *testing.T) {
	c := NewCounter("gpt-4o-mini")
	items := []string{"first message here", "second message here", "third"}
	cost := func(s string) int { return c.Count(s) }

	kept := TrimToBudget(c, items, func(s string) string { return s }, cost(items[1])+cost(items[2]))
	require.Equal(t, []string{"second message here", "third"}, kept)

	require.Equal(t, items, TrimToBudget(c, items, func(s string) string { return s }, 0))
	require.Empty(t, TrimToBudget(c, []string{"a very long message that cannot fit"}, func(s string) string { return s }, 1))
}
