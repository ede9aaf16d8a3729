package types

// DepositCommand represents a user's deposit command
type DepositCommand struct {
	Amount string
	Symbol string
	Chain  string
}

// QuoteDisplay holds formatted quote information for display
type QuoteDisplay struct {
	SourceAmount   string `json:"source_amount"`
	SourceToken    string `json:"source_token"`
	SourceChain    string `json:"source_chain"`
	DestAmount     string `json:"dest_amount"`
	DestMinimum    string `json:"dest_minimum"`
	DestToken      string `json:"dest_token"`
	EstimatedTime  string `json:"estimated_time,omitempty"`
	DepositAddress string `json:"deposit_address,omitempty"`
	Direct         bool   `json:"direct"`
}
