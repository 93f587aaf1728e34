package xrpl

import "encoding/json"

// ServerInfo is the subset of the server_info response the gateway uses.
type ServerInfo struct {
	BuildVersion        string
	NetworkID           uint32
	BaseFeeXRP          string
	ValidatedLedgerSeq  int64
	ValidatedLedgerHash string
	LoadFactor          float64
}

// FeeInfo is the subset of the fee response the gateway uses. Values are drops.
type FeeInfo struct {
	BaseFee       string
	MedianFee     string
	OpenLedgerFee string
}

// AccountInfo describes an account root entry.
type AccountInfo struct {
	Account     string
	Balance     string // drops
	Sequence    uint32
	OwnerCount  uint32
	LedgerIndex int64
	Validated   bool
}

// SubmitResult is the preliminary outcome of a submit call.
type SubmitResult struct {
	EngineResult        string
	EngineResultCode    int
	EngineResultMessage string
	Accepted            bool
	TxJSON              json.RawMessage
}

// TransactionResult is a transaction looked up by hash.
type TransactionResult struct {
	Hash            string
	Account         string
	TransactionType string
	Sequence        uint32
	LedgerIndex     int64
	Validated       bool
	Date            int64 // ripple epoch seconds
	Meta            *TransactionMetadata
	TxJSON          json.RawMessage
}

// TransactionMetadata is the consensus metadata attached to a transaction.
type TransactionMetadata struct {
	AffectedNodes     []AffectedNode `json:"AffectedNodes"`
	TransactionIndex  int            `json:"TransactionIndex"`
	TransactionResult string         `json:"TransactionResult"`
}

// AffectedNode is one before/after ledger-object snapshot from metadata.
// Exactly one of the Created/Modified/Deleted markers applies; the wire form
// wraps the body under a key naming the node type.
type AffectedNode struct {
	// NodeType is "CreatedNode", "ModifiedNode" or "DeletedNode".
	NodeType string

	LedgerEntryType string
	LedgerIndex     string

	// NewFields holds the created object's fields (CreatedNode only).
	NewFields map[string]interface{}
	// FinalFields holds the object's state after the transaction
	// (ModifiedNode and DeletedNode).
	FinalFields map[string]interface{}
	// PreviousFields holds the pre-transaction values of the fields the
	// transaction changed.
	PreviousFields map[string]interface{}
}

// affectedNodeBody is the wire body under the node-type key.
type affectedNodeBody struct {
	LedgerEntryType string                 `json:"LedgerEntryType"`
	LedgerIndex     string                 `json:"LedgerIndex"`
	NewFields       map[string]interface{} `json:"NewFields"`
	FinalFields     map[string]interface{} `json:"FinalFields"`
	PreviousFields  map[string]interface{} `json:"PreviousFields"`
}

// UnmarshalJSON unwraps {"ModifiedNode": {...}} style entries.
func (n *AffectedNode) UnmarshalJSON(data []byte) error {
	var wrapper map[string]affectedNodeBody
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return err
	}

	for _, nodeType := range []string{"CreatedNode", "ModifiedNode", "DeletedNode"} {
		body, ok := wrapper[nodeType]
		if !ok {
			continue
		}
		n.NodeType = nodeType
		n.LedgerEntryType = body.LedgerEntryType
		n.LedgerIndex = body.LedgerIndex
		n.NewFields = body.NewFields
		n.FinalFields = body.FinalFields
		n.PreviousFields = body.PreviousFields
		return nil
	}

	// Unknown wrapper key; leave the node empty so callers skip it.
	return nil
}

// LedgerClosed is a ledger stream notification.
type LedgerClosed struct {
	LedgerIndex int64  `json:"ledger_index"`
	LedgerHash  string `json:"ledger_hash"`
	LedgerTime  int64  `json:"ledger_time"`
	TxnCount    int    `json:"txn_count"`
	FeeBase     int64  `json:"fee_base"`
}

// TransactionEvent is a transaction stream notification.
type TransactionEvent struct {
	EngineResult string               `json:"engine_result"`
	LedgerIndex  int64                `json:"ledger_index"`
	Validated    bool                 `json:"validated"`
	Meta         *TransactionMetadata `json:"meta"`
	Transaction  json.RawMessage      `json:"transaction"`
}

// StreamMessage is one message from an active subscription.
type StreamMessage struct {
	Type        string
	Ledger      *LedgerClosed
	Transaction *TransactionEvent
	Raw         json.RawMessage
}

// SubscribeRequest selects streams and accounts to subscribe to.
type SubscribeRequest struct {
	Streams  []string // e.g. "ledger", "transactions"
	Accounts []string // classic addresses for account streams
	Books    []BookSubscription
}

// BookSubscription subscribes to updates of one order book side.
type BookSubscription struct {
	TakerGets Amount
	TakerPays Amount
	Snapshot  bool
	Both      bool
}

// Offer is one resting order from a book_offers response.
type Offer struct {
	Account   string
	Sequence  uint32
	Flags     int64
	TakerGets Amount
	TakerPays Amount
	Quality   string
}
