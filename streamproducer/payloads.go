package streamproducer

// TransactionsPayload is published after a parser range successfully
// fetches transactions, per spec.md §4.9/§4.11.
type TransactionsPayload struct {
	Chain        string        `json:"chain"`
	Blocks       []uint64      `json:"blocks"`
	Transactions []interface{} `json:"transactions"`
}

// RewardsNotificationPayload is the reward-event payload named in
// spec.md §4.11 and §6 (external collaborator queues observed_prices_worker,
// pricer_worker, charts_worker share this facade even though reward
// scoring itself is out of scope per spec.md §1).
type RewardsNotificationPayload struct {
	Chain     string      `json:"chain"`
	Address   string      `json:"address"`
	Event     string      `json:"event"`
	Amount    string      `json:"amount"`
	Metadata  interface{} `json:"metadata,omitempty"`
}

// blockQueueName, etc. centralize the queue-naming convention of spec.md §6.
func blockQueueName(chain string) string { return "parser_" + chain }
