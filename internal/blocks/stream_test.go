package blocks

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func header(number uint64) *types.Header {
	return &types.Header{Number: new(big.Int).SetUint64(number)}
}

func TestSubscriberSeesCurrentBlockImmediately(t *testing.T) {
	stream := NewStream(header(7))
	sub := stream.Subscribe()

	got, err := sub.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), got.Number.Uint64())
}

func TestSlowSubscriberSkipsIntermediateBlocks(t *testing.T) {
	stream := NewStream(header(1))
	sub := stream.Subscribe()

	first, err := sub.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Number.Uint64())

	stream.Publish(header(2))
	stream.Publish(header(3))
	stream.Publish(header(4))

	next, err := sub.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(4), next.Number.Uint64())
}

func TestLateSubscriberStartsAtLatest(t *testing.T) {
	stream := NewStream(header(1))
	stream.Publish(header(2))

	sub := stream.Subscribe()
	got, err := sub.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Number.Uint64())
}

func TestSubscriberObservesTermination(t *testing.T) {
	stream := NewStream(header(1))
	sub := stream.Subscribe()

	_, err := sub.Next(context.Background())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := sub.Next(context.Background())
		done <- err
	}()

	stream.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrStreamClosed)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not observe stream termination")
	}
}

func TestFinalBlockDeliveredBeforeTermination(t *testing.T) {
	stream := NewStream(header(1))
	stream.Publish(header(2))
	stream.Close()

	sub := stream.Subscribe()
	got, err := sub.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Number.Uint64())

	_, err = sub.Next(context.Background())
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func TestNextHonorsContextCancellation(t *testing.T) {
	stream := NewStream(header(1))
	sub := stream.Subscribe()
	_, err := sub.Next(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = sub.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNumber(t *testing.T) {
	got, err := Number(header(42))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), got)

	_, err = Number(&types.Header{})
	assert.ErrorIs(t, err, ErrNoBlockNumber)
	assert.EqualError(t, err, "no block number")

	_, err = Number(nil)
	assert.ErrorIs(t, err, ErrNoBlockNumber)
}
