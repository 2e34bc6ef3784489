package layerzero

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestDecodePacket_RoundTrip(t *testing.T) {
	h := Header{
		Version:  1,
		Nonce:    42,
		SrcEid:   30101,
		Sender:   common.HexToAddress("0x1111111111111111111111111111111111111111"),
		DstEid:   30102,
		Receiver: common.HexToAddress("0x2222222222222222222222222222222222222222"),
	}
	var guid [32]byte
	guid[0] = 0xAB
	message := []byte("hello-layerzero")

	encoded := append(headerBytes(h), append(guid[:], message...)...)

	decodedHeader, decodedGuid, decodedMessage, err := DecodePacket(encoded)
	if err != nil {
		t.Fatalf("decode packet: %v", err)
	}
	if decodedHeader != h {
		t.Fatalf("header mismatch: got %+v want %+v", decodedHeader, h)
	}
	if decodedGuid != guid {
		t.Fatalf("guid mismatch")
	}
	if !bytes.Equal(decodedMessage, message) {
		t.Fatalf("message mismatch: got %q want %q", decodedMessage, message)
	}
}

func TestDecodeHeader_TooShort(t *testing.T) {
	if _, err := DecodeHeader(make([]byte, 10)); err == nil {
		t.Fatal("expected error for short header")
	}
}
