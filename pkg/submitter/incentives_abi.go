// Copyright 2025 Certen Protocol
//
// Minimal ABI for the escrow's destination-side entry point, used only
// to encode the calldata the eval queue simulates and the submit queue
// broadcasts (spec §4.6.2, §4.6.3).

package submitter

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const IncentivesABI = `[
	{
		"type": "function",
		"name": "processPacket",
		"stateMutability": "payable",
		"inputs": [
			{"name": "messageCtx", "type": "bytes"},
			{"name": "message", "type": "bytes"},
			{"name": "relayer", "type": "address"}
		],
		"outputs": []
	}
]`

func parseIncentivesABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(IncentivesABI))
}
