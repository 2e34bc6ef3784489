// Copyright 2025 Certen Protocol
//
// EscrowEventsABI describes the four bounty lifecycle events the getter
// scans for (spec §4.2). ABI decoding of each bridge's own contracts is
// explicitly out of scope (spec §1); this is the one escrow-contract ABI
// the core relies on directly, grounded on the teacher's inline event
// ABI JSON (pkg/anchor/event_watcher.go's CertenAnchorV3EventsABI).

package getter

const EscrowEventsABI = `[
	{
		"type": "event",
		"name": "BountyPlaced",
		"inputs": [
			{"name": "messageIdentifier", "type": "bytes32", "indexed": true},
			{"name": "incentive", "type": "tuple", "indexed": false, "components": [
				{"name": "maxGasDelivery", "type": "uint256"},
				{"name": "maxGasAck", "type": "uint256"},
				{"name": "priceOfDeliveryGas", "type": "uint256"},
				{"name": "priceOfAckGas", "type": "uint256"},
				{"name": "targetDelta", "type": "uint256"}
			]}
		]
	},
	{
		"type": "event",
		"name": "MessageDelivered",
		"inputs": [
			{"name": "messageIdentifier", "type": "bytes32", "indexed": true}
		]
	},
	{
		"type": "event",
		"name": "BountyClaimed",
		"inputs": [
			{"name": "messageIdentifier", "type": "bytes32", "indexed": true}
		]
	},
	{
		"type": "event",
		"name": "BountyIncreased",
		"inputs": [
			{"name": "messageIdentifier", "type": "bytes32", "indexed": true},
			{"name": "newDeliveryGasPrice", "type": "uint256"},
			{"name": "newAckGasPrice", "type": "uint256"}
		]
	}
]`
