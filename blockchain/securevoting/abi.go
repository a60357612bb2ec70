package securevoting

// ABI of the SecureVoting contract. hasAlreadyVoted and isOwner answer for
// msg.sender.
const ABI = `[
	{
		"inputs": [],
		"name": "getCandidates",
		"outputs": [
			{
				"components": [
					{"internalType": "uint256", "name": "uid", "type": "uint256"},
					{"internalType": "string", "name": "name", "type": "string"},
					{"internalType": "string", "name": "party", "type": "string"},
					{"internalType": "uint256", "name": "votes", "type": "uint256"}
				],
				"internalType": "struct SecureVoting.Candidate[]",
				"name": "",
				"type": "tuple[]"
			}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "hasAlreadyVoted",
		"outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "isOwner",
		"outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "voter", "type": "address"},
			{"internalType": "uint256", "name": "candidateId", "type": "uint256"}
		],
		"name": "vote",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "string", "name": "name", "type": "string"},
			{"internalType": "string", "name": "party", "type": "string"}
		],
		"name": "addCandidate",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`
