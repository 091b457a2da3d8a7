package protocol

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScheduler(t *testing.T) {
	t.Run("messages are consumed in order", func(t *testing.T) {
		s := NewScheduler()
		defer s.Close()

		ctx := context.Background()
		require.NoError(t, s.Dispatch(ctx, Msg{Type: MsgTypePingRequest, RequestID: 1}))
		require.NoError(t, s.Dispatch(ctx, Msg{Type: MsgTypePingRequest, RequestID: 2}))

		require.Equal(t, uint32(1), (<-s.Messages()).RequestID)
		require.Equal(t, uint32(2), (<-s.Messages()).RequestID)
	})

	t.Run("frames are coalesced", func(t *testing.T) {
		s := NewScheduler()
		defer s.Close()

		s.HandleFrame()
		s.HandleFrame()
		s.HandleFrame()

		<-s.Frames()
		select {
		case <-s.Frames():
			t.Fatal("frame was not coalesced")
		default:
		}
	})

	t.Run("dispatch returns when context is canceled", func(t *testing.T) {
		s := NewScheduler()
		defer s.Close()

		for i := 0; i < schedulerQueueSize; i++ {
			require.NoError(t, s.Dispatch(context.Background(), Msg{Type: MsgTypePingRequest}))
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		require.Error(t, s.Dispatch(ctx, Msg{Type: MsgTypePingRequest}))
	})

	t.Run("dispatch fails after close", func(t *testing.T) {
		s := NewScheduler()
		for i := 0; i < schedulerQueueSize; i++ {
			require.NoError(t, s.Dispatch(context.Background(), Msg{Type: MsgTypePingRequest}))
		}
		s.Close()
		s.Close()

		require.Error(t, s.Dispatch(context.Background(), Msg{Type: MsgTypePingRequest}))
		s.HandleFrame()
	})
}
