package rpcapi

// OpenRPCDocument is the static introspection document served by the
// schema/api_schema/apiSchema aliases. It is hand-maintained rather than
// generated: the method surface is small and changes rarely.
var OpenRPCDocument = map[string]any{
	"openrpc": "1.2.6",
	"info": map[string]any{
		"title":   "token-indexer RPC API",
		"version": "1.0.0",
	},
	"methods": []map[string]any{
		{
			"name":    "liveness",
			"summary": "Always succeeds once the process is up.",
			"params":  []any{},
		},
		{
			"name":    "readiness",
			"summary": "Succeeds once the storage pool answers SELECT 1.",
			"params":  []any{},
		},
		{
			"name":    "get_transactions_by_address",
			"summary": "List transfers filtered by source address, destination address, and/or mint address.",
			"params": []map[string]any{
				{"name": "sourceAddress", "required": false},
				{"name": "destinationAddress", "required": false},
				{"name": "mintAddress", "required": false},
				{"name": "sortBy", "required": false},
				{"name": "sortDirection", "required": false},
				{"name": "limit", "required": false},
				{"name": "page", "required": false},
				{"name": "before", "required": false},
				{"name": "after", "required": false},
			},
		},
		{
			"name":    "get_transactions_by_mint",
			"summary": "List transfers filtered by mint address.",
			"params": []map[string]any{
				{"name": "mintAddress", "required": true},
				{"name": "sortBy", "required": false},
				{"name": "sortDirection", "required": false},
				{"name": "limit", "required": false},
				{"name": "page", "required": false},
				{"name": "before", "required": false},
				{"name": "after", "required": false},
			},
		},
	},
}
