package store

import (
	"strings"
	"testing"

	"github.com/catalystdao/generalised-relayer-sub000/pkg/chaintypes"
)

func TestKeyLayout(t *testing.T) {
	s := &Store{prefix: "relayer"}
	id := chaintypes.MessageID{0xAA}

	cases := map[string]string{
		s.bountyKey(id):                  "relayer:bounty:" + id.String(),
		s.ambKey("ethereum", id):         "relayer:amb:ethereum:" + id.String(),
		s.ambProofKey("ethereum", id):    "relayer:ambProof:ethereum:" + id.String(),
		s.hashAmbMapKey("ethereum", "0xabc"): "relayer:hashAmbMap:ethereum:0xabc",
		s.additionalKey("layerzero", "H"): "relayer:additional:layerzero:H",
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("key mismatch: got %q want %q", got, want)
		}
	}
}

func TestChannelNames(t *testing.T) {
	if OnAMBProofChannel("ethereum") != "on_amb_proof:ethereum" {
		t.Fatalf("unexpected channel name: %s", OnAMBProofChannel("ethereum"))
	}
	if OnPacketSentProcessedChannel("layerzero") != "on_packet_sent_processed:layerzero" {
		t.Fatalf("unexpected channel name: %s", OnPacketSentProcessedChannel("layerzero"))
	}
	if !strings.HasPrefix(OnKeyChangeChannel, "on_key_change") {
		t.Fatalf("unexpected debug channel name: %s", OnKeyChangeChannel)
	}
}
