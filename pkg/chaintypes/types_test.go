package chaintypes

import "testing"

func TestMergeBounty_StatusMonotonic(t *testing.T) {
	placed := Bounty{
		MessageID:          MessageID{0xAA},
		FromChain:          "A",
		Status:             BountyPlaced,
		PriceOfDeliveryGas: "10",
		PriceOfAckGas:      "5",
	}

	delivered := MergeBounty(&placed, Bounty{Status: BountyDelivered})
	if delivered.Status != BountyDelivered {
		t.Fatalf("expected status Delivered, got %s", delivered.Status)
	}

	// A later, stale event claiming Placed must not regress status.
	regressed := MergeBounty(&delivered, Bounty{Status: BountyPlaced})
	if regressed.Status != BountyDelivered {
		t.Fatalf("status regressed: got %s", regressed.Status)
	}
}

func TestMergeBounty_PriceOnlyRisesUpward(t *testing.T) {
	existing := Bounty{PriceOfDeliveryGas: "10", PriceOfAckGas: "5"}

	merged := MergeBounty(&existing, Bounty{PriceOfDeliveryGas: "15", PriceOfAckGas: "3"})
	if merged.PriceOfDeliveryGas != "15" {
		t.Fatalf("expected delivery price to rise to 15, got %s", merged.PriceOfDeliveryGas)
	}
	if merged.PriceOfAckGas != "5" {
		t.Fatalf("expected ack price to stay at 5 (3 < 5), got %s", merged.PriceOfAckGas)
	}
}

func TestMergeBounty_CommutesAcrossArrivalOrder(t *testing.T) {
	placedEvent := Bounty{MessageID: MessageID{0x01}, FromChain: "A", Status: BountyPlaced, PriceOfDeliveryGas: "10", PriceOfAckGas: "5"}
	deliveredEvent := Bounty{ToChain: "B", Status: BountyDelivered}

	// placed then delivered
	var a *Bounty
	first := MergeBounty(a, placedEvent)
	first = MergeBounty(&first, deliveredEvent)

	// delivered then placed (out-of-order arrival across chains)
	var b *Bounty
	second := MergeBounty(b, deliveredEvent)
	second = MergeBounty(&second, placedEvent)

	if first.Status != second.Status || first.ToChain != second.ToChain || first.FromChain != second.FromChain {
		t.Fatalf("merge is not commutative across arrival order: %+v vs %+v", first, second)
	}
}

func TestMessageIDFromHex_RoundTrip(t *testing.T) {
	id := MessageID{0xDE, 0xAD, 0xBE, 0xEF}
	parsed, err := MessageIDFromHex(id.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != id {
		t.Fatalf("round-trip mismatch: got %s want %s", parsed, id)
	}
}

func TestMessageIDFromHex_WrongLength(t *testing.T) {
	if _, err := MessageIDFromHex("0xabcd"); err == nil {
		t.Fatal("expected error for short hex string")
	}
}
