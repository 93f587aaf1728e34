package xrpl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ServerInfo fetches node build, network and validated-ledger information.
func (c *Client) ServerInfo(ctx context.Context) (*ServerInfo, error) {
	raw, err := c.Request(ctx, "server_info", nil)
	if err != nil {
		return nil, err
	}

	var result serverInfoResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("unmarshal server_info: %w", err)
	}

	info := &ServerInfo{
		BuildVersion: result.Info.BuildVersion,
		NetworkID:    result.Info.NetworkID,
		LoadFactor:   result.Info.LoadFactor,
	}
	if vl := result.Info.ValidatedLedger; vl != nil {
		info.ValidatedLedgerSeq = vl.Seq
		info.ValidatedLedgerHash = vl.Hash
		info.BaseFeeXRP = vl.BaseFeeXRP.String()
	}
	return info, nil
}

// serverInfoResult is the raw server_info response.
type serverInfoResult struct {
	Info struct {
		BuildVersion    string  `json:"build_version"`
		NetworkID       uint32  `json:"network_id"`
		LoadFactor      float64 `json:"load_factor"`
		ValidatedLedger *struct {
			Seq        int64       `json:"seq"`
			Hash       string      `json:"hash"`
			BaseFeeXRP json.Number `json:"base_fee_xrp"`
		} `json:"validated_ledger"`
	} `json:"info"`
}

// Fee fetches the current fee levels in drops.
func (c *Client) Fee(ctx context.Context) (*FeeInfo, error) {
	raw, err := c.Request(ctx, "fee", nil)
	if err != nil {
		return nil, err
	}

	var result feeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("unmarshal fee: %w", err)
	}

	return &FeeInfo{
		BaseFee:       result.Drops.BaseFee,
		MedianFee:     result.Drops.MedianFee,
		OpenLedgerFee: result.Drops.OpenLedgerFee,
	}, nil
}

// feeResult is the raw fee response.
type feeResult struct {
	Drops struct {
		BaseFee       string `json:"base_fee"`
		MedianFee     string `json:"median_fee"`
		OpenLedgerFee string `json:"open_ledger_fee"`
	} `json:"drops"`
}

// AccountInfo fetches an account root entry from the validated ledger.
func (c *Client) AccountInfo(ctx context.Context, account string) (*AccountInfo, error) {
	raw, err := c.Request(ctx, "account_info", map[string]interface{}{
		"account":      account,
		"ledger_index": "validated",
	})
	if err != nil {
		return nil, err
	}

	var result accountInfoResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("unmarshal account_info: %w", err)
	}

	return &AccountInfo{
		Account:     result.AccountData.Account,
		Balance:     result.AccountData.Balance,
		Sequence:    result.AccountData.Sequence,
		OwnerCount:  result.AccountData.OwnerCount,
		LedgerIndex: result.LedgerIndex,
		Validated:   result.Validated,
	}, nil
}

// accountInfoResult is the raw account_info response.
type accountInfoResult struct {
	AccountData struct {
		Account    string `json:"Account"`
		Balance    string `json:"Balance"`
		Sequence   uint32 `json:"Sequence"`
		OwnerCount uint32 `json:"OwnerCount"`
	} `json:"account_data"`
	LedgerIndex int64 `json:"ledger_index"`
	Validated   bool  `json:"validated"`
}

// LedgerCurrent fetches the in-progress ledger index.
func (c *Client) LedgerCurrent(ctx context.Context) (int64, error) {
	raw, err := c.Request(ctx, "ledger_current", nil)
	if err != nil {
		return 0, err
	}

	var result struct {
		LedgerCurrentIndex int64 `json:"ledger_current_index"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, fmt.Errorf("unmarshal ledger_current: %w", err)
	}
	return result.LedgerCurrentIndex, nil
}

// Submit sends a signed transaction blob and returns the preliminary engine
// result. A definitive non-success engine result is not an error here;
// callers inspect EngineResult.
func (c *Client) Submit(ctx context.Context, txBlob string) (*SubmitResult, error) {
	raw, err := c.Request(ctx, "submit", map[string]interface{}{
		"tx_blob": txBlob,
	})
	if err != nil {
		return nil, err
	}

	var result submitResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("unmarshal submit: %w", err)
	}

	return &SubmitResult{
		EngineResult:        result.EngineResult,
		EngineResultCode:    result.EngineResultCode,
		EngineResultMessage: result.EngineResultMessage,
		Accepted:            result.Accepted,
		TxJSON:              result.TxJSON,
	}, nil
}

// submitResult is the raw submit response.
type submitResult struct {
	EngineResult        string          `json:"engine_result"`
	EngineResultCode    int             `json:"engine_result_code"`
	EngineResultMessage string          `json:"engine_result_message"`
	Accepted            bool            `json:"accepted"`
	TxJSON              json.RawMessage `json:"tx_json"`
}

// Tx looks a transaction up by hash. Returns (nil, nil) when the transaction
// is not found on this node yet.
func (c *Client) Tx(ctx context.Context, hash string) (*TransactionResult, error) {
	raw, err := c.Request(ctx, "tx", map[string]interface{}{
		"transaction": hash,
	})
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == "txnNotFound" {
			return nil, nil
		}
		return nil, err
	}

	var result txResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("unmarshal tx: %w", err)
	}

	return &TransactionResult{
		Hash:            result.Hash,
		Account:         result.Account,
		TransactionType: result.TransactionType,
		Sequence:        result.Sequence,
		LedgerIndex:     result.LedgerIndex,
		Validated:       result.Validated,
		Date:            result.Date,
		Meta:            result.Meta,
		TxJSON:          raw,
	}, nil
}

// txResult is the raw tx response.
type txResult struct {
	Hash            string               `json:"hash"`
	Account         string               `json:"Account"`
	TransactionType string               `json:"TransactionType"`
	Sequence        uint32               `json:"Sequence"`
	LedgerIndex     int64                `json:"ledger_index"`
	Validated       bool                 `json:"validated"`
	Date            int64                `json:"date"`
	Meta            *TransactionMetadata `json:"meta"`
}

// BookOffers fetches one side of an order book.
func (c *Client) BookOffers(ctx context.Context, takerGets, takerPays Amount, limit int) ([]Offer, error) {
	params := map[string]interface{}{
		"taker_gets": assetSpec(takerGets),
		"taker_pays": assetSpec(takerPays),
	}
	if limit > 0 {
		params["limit"] = limit
	}

	raw, err := c.Request(ctx, "book_offers", params)
	if err != nil {
		return nil, err
	}

	var result bookOffersResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("unmarshal book_offers: %w", err)
	}

	offers := make([]Offer, 0, len(result.Offers))
	for _, o := range result.Offers {
		gets, err := ParseAmount(o.TakerGets)
		if err != nil {
			continue
		}
		pays, err := ParseAmount(o.TakerPays)
		if err != nil {
			continue
		}
		offers = append(offers, Offer{
			Account:   o.Account,
			Sequence:  o.Sequence,
			Flags:     o.Flags,
			TakerGets: gets,
			TakerPays: pays,
			Quality:   o.Quality,
		})
	}
	return offers, nil
}

// bookOffersResult is the raw book_offers response.
type bookOffersResult struct {
	Offers []struct {
		Account   string          `json:"Account"`
		Sequence  uint32          `json:"Sequence"`
		Flags     int64           `json:"Flags"`
		TakerGets json.RawMessage `json:"TakerGets"`
		TakerPays json.RawMessage `json:"TakerPays"`
		Quality   string          `json:"quality"`
	} `json:"offers"`
}

// Ping issues a protocol-level ping round trip.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Request(ctx, "ping", nil)
	return err
}
