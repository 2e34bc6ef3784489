// Copyright 2025 Certen Protocol
//
// Packet header codec shared by the source-side PacketSent decoder and
// the destination-side PayloadVerified decoder. Byte offsets follow
// EndpointV2's on-chain packet encoding (version, nonce, srcEid,
// sender, dstEid, receiver, guid, message) rather than any one
// revision's internal slice offsets, per the design notes' guidance to
// validate against the ABI specification directly.

package layerzero

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

const headerLength = 1 + 8 + 4 + 32 + 4 + 32 // version, nonce, srcEid, sender, dstEid, receiver

// Header is the common prefix of every LayerZero v2 packet.
type Header struct {
	Version  uint8
	Nonce    uint64
	SrcEid   uint32
	Sender   common.Address
	DstEid   uint32
	Receiver common.Address
}

// DecodeHeader parses the fixed-width header prefix shared by
// PacketSent's encodedPayload and PayloadVerified's header argument.
func DecodeHeader(raw []byte) (Header, error) {
	if len(raw) < headerLength {
		return Header{}, fmt.Errorf("packet header too short: %d bytes, want >= %d", len(raw), headerLength)
	}
	var h Header
	h.Version = raw[0]
	h.Nonce = binary.BigEndian.Uint64(raw[1:9])
	h.SrcEid = binary.BigEndian.Uint32(raw[9:13])
	h.Sender = common.BytesToAddress(raw[13:45])
	h.DstEid = binary.BigEndian.Uint32(raw[45:49])
	h.Receiver = common.BytesToAddress(raw[49:81])
	return h, nil
}

// DecodePacket parses a full PacketSent encodedPayload into its header,
// guid, and message.
func DecodePacket(raw []byte) (Header, [32]byte, []byte, error) {
	h, err := DecodeHeader(raw)
	if err != nil {
		return Header{}, [32]byte{}, nil, err
	}
	if len(raw) < headerLength+32 {
		return Header{}, [32]byte{}, nil, fmt.Errorf("packet too short to contain guid: %d bytes", len(raw))
	}
	var guid [32]byte
	copy(guid[:], raw[headerLength:headerLength+32])
	message := raw[headerLength+32:]
	return h, guid, message, nil
}
