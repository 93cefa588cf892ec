package gateway

// InvoiceABI is the interface of the invoice tokenization contract the
// gateway is configured against. Deployments with a different contract
// pass their own ABI JSON through Config.
const InvoiceABI = `[
	{
		"type": "function",
		"name": "issueInvoice",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "debtor", "type": "address"},
			{"name": "amount", "type": "uint256"},
			{"name": "dueDate", "type": "uint256"},
			{"name": "metadataURI", "type": "string"}
		],
		"outputs": [{"name": "invoiceId", "type": "uint256"}]
	},
	{
		"type": "function",
		"name": "settleInvoice",
		"stateMutability": "nonpayable",
		"inputs": [{"name": "invoiceId", "type": "uint256"}],
		"outputs": []
	},
	{
		"type": "function",
		"name": "getInvoice",
		"stateMutability": "view",
		"inputs": [{"name": "invoiceId", "type": "uint256"}],
		"outputs": [
			{"name": "debtor", "type": "address"},
			{"name": "creditor", "type": "address"},
			{"name": "amount", "type": "uint256"},
			{"name": "dueDate", "type": "uint256"},
			{"name": "settled", "type": "bool"},
			{"name": "metadataURI", "type": "string"}
		]
	},
	{
		"type": "function",
		"name": "invoiceCount",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "", "type": "uint256"}]
	}
]`
