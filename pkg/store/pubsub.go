// Copyright 2025 Certen Protocol
//
// Named-channel pub/sub on top of the Store's Redis connection (spec
// §4.4, §6): on_amb_proof:<chainId>, on_packet_sent_processed:<bridge>,
// on_key_change. Delivery is ordered per channel and at-most-once — if
// no subscriber is attached when a message is published, it is simply
// dropped, matching Redis pub/sub semantics exactly.

package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// OnAMBProofChannel returns the destination-chain proof channel name.
func OnAMBProofChannel(chainID string) string {
	return fmt.Sprintf("on_amb_proof:%s", chainID)
}

// OnPacketSentProcessedChannel returns the bridge-private recovery channel.
func OnPacketSentProcessedChannel(bridge string) string {
	return fmt.Sprintf("on_packet_sent_processed:%s", bridge)
}

// OnKeyChangeChannel is the debug channel fired on every bucket write.
const OnKeyChangeChannel = "on_key_change"

// Publish marshals payload as JSON and publishes it to channel under
// this store's prefix.
func (s *Store) Publish(ctx context.Context, channel string, payload interface{}) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode publish payload: %w", err)
	}
	if err := s.rdb.Publish(ctx, s.channelKey(channel), encoded).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Handler processes one decoded message. Returning an error only logs —
// subscriptions never retry or block the channel's FIFO ordering.
type Handler func(raw []byte) error

// Subscribe attaches handler to channel and runs it in a dedicated
// goroutine until ctx is cancelled, preserving publish order: the
// underlying Redis subscription delivers one message at a time and the
// handler completes before the next is read.
func (s *Store) Subscribe(ctx context.Context, channel string, handler func(raw []byte) error) error {
	sub := s.rdb.Subscribe(ctx, s.channelKey(channel))
	ch := sub.Channel()

	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if err := handler([]byte(msg.Payload)); err != nil {
					s.logger.Printf("ERROR: handler for channel %s failed: %v", channel, err)
				}
			}
		}
	}()

	return nil
}
