package oneinch

// spenderResponse is the payload of the approve/spender endpoint.
type spenderResponse struct {
	Address string `json:"address"`
}

// SwapParams describe one aggregator swap request.
type SwapParams struct {
	Src    string // source token address
	Dst    string // destination token address
	Amount string // source amount in smallest units, decimal string
	From   string // wallet address executing the swap
}

// SwapTx is the ready-to-sign transaction returned by the swap endpoint.
type SwapTx struct {
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value"`
	Gas   int64  `json:"gas"`
}

// swapResponse is the payload of the swap endpoint.
type swapResponse struct {
	Tx        SwapTx `json:"tx"`
	DstAmount string `json:"dstAmount"`
}

// apiError is the error payload 1inch returns on non-2xx responses.
type apiError struct {
	Error       string `json:"error"`
	Description string `json:"description"`
	StatusCode  int    `json:"statusCode"`
}
