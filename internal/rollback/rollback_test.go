package rollback

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListRunsInReverse(t *testing.T) {
	var order []string
	var list List
	list.Add(func(context.Context) { order = append(order, "avatar") })
	list.Add(nil)
	list.Add(func(context.Context) { order = append(order, "cover") })
	require.Equal(t, 2, list.Len())

	list.Run(context.Background())
	require.Equal(t, []string{"cover", "avatar"}, order)
	require.Zero(t, list.Len())

	list.Run(context.Background())
	require.Len(t, order, 2)
}

func TestListRunIgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var list List
	var seen error
	list.Add(func(ctx context.Context) { seen = ctx.Err() })
	list.Run(ctx)
	require.NoError(t, seen)
}

func TestListDiscard(t *testing.T) {
	ran := false
	var list List
	list.Add(func(context.Context) { ran = true })
	list.Discard()
	list.Run(context.Background())
	require.False(t, ran)
}
