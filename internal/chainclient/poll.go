package chainclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/synnergy-labs/token-indexer/internal/errs"
)

// rpcRequest is a minimal JSON-RPC 2.0 request envelope for the upstream
// chain node (not to be confused with this service's own RPC surface).
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// HTTPPollClient is a PollClient backed by the chain node's JSON-RPC-over-HTTP
// endpoint.
type HTTPPollClient struct {
	url string
	hc  *http.Client
	log *zap.SugaredLogger
}

// NewHTTPPollClient builds a poll client pointed at url.
func NewHTTPPollClient(url string, log *zap.SugaredLogger) *HTTPPollClient {
	return &HTTPPollClient{
		url: url,
		hc:  &http.Client{Timeout: RequestTimeout},
		log: log,
	}
}

func (c *HTTPPollClient) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, errs.Wrap(errs.KindNetwork, err, "marshal rpc request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(errs.KindNetwork, err, "build rpc request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.KindNetwork, err, fmt.Sprintf("call %s", method))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.KindNetwork, err, "read rpc response")
	}

	var rr rpcResponse
	if err := json.Unmarshal(raw, &rr); err != nil {
		return nil, errs.Wrap(errs.KindNetwork, err, "decode rpc response")
	}
	if rr.Error != nil {
		if SkippedBlockErrors[rr.Error.Code] {
			return nil, &SkippedBlockError{Code: rr.Error.Code}
		}
		return nil, errs.New(errs.KindNetwork, fmt.Sprintf("rpc error %d: %s", rr.Error.Code, rr.Error.Message))
	}
	return rr.Result, nil
}

const failedBlockLoggingFrequency = 100

// GetBlock fetches a confirmed block, retrying forever on transient errors.
// A SkippedBlockError is returned immediately without retry.
func (c *HTTPPollClient) GetBlock(ctx context.Context, slot uint64) (RawBlock, error) {
	params := []any{slot, map[string]any{
		"encoding":                       "json",
		"transactionDetails":             "full",
		"commitment":                     "confirmed",
		"maxSupportedTransactionVersion": 0,
	}}

	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return RawBlock{}, ctx.Err()
		default:
		}

		raw, err := c.call(ctx, "getBlock", params)
		if err == nil {
			var block RawBlock
			if uerr := json.Unmarshal(raw, &block); uerr != nil {
				return RawBlock{}, errs.Wrap(errs.KindParse, uerr, "decode getBlock result")
			}
			return block, nil
		}

		var skipped *SkippedBlockError
		if ok := errorsAsSkipped(err, &skipped); ok {
			skipped.Slot = slot
			if c.log != nil {
				c.log.Warnw("skipped block", "slot", slot, "code", skipped.Code)
			}
			return RawBlock{}, skipped
		}

		if attempt%failedBlockLoggingFrequency == 1 && c.log != nil {
			c.log.Warnw("failed to fetch block, retrying", "slot", slot, "error", err)
		}
		attempt++

		select {
		case <-ctx.Done():
			return RawBlock{}, ctx.Err()
		case <-time.After(blockFetchBackoff):
		}
	}
}

// CurrentSlot returns the chain's current slot, retrying forever on error.
func (c *HTTPPollClient) CurrentSlot(ctx context.Context) (uint64, error) {
	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}

		raw, err := c.call(ctx, "getSlot", []any{map[string]any{"commitment": "confirmed"}})
		if err == nil {
			var slot uint64
			if uerr := json.Unmarshal(raw, &slot); uerr == nil {
				return slot, nil
			}
		}
		if c.log != nil {
			c.log.Warnw("failed to fetch current slot, retrying", "error", err)
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(headSlotBackoff):
		}
	}
}

// GenesisHash returns the chain's genesis hash, retrying forever on error.
func (c *HTTPPollClient) GenesisHash(ctx context.Context) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		raw, err := c.call(ctx, "getGenesisHash", nil)
		if err == nil {
			var hash string
			if uerr := json.Unmarshal(raw, &hash); uerr == nil {
				return hash, nil
			}
		}
		if c.log != nil {
			c.log.Warnw("failed to fetch genesis hash, retrying", "error", err)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(genesisHashBackoff):
		}
	}
}

func errorsAsSkipped(err error, target **SkippedBlockError) bool {
	if se, ok := err.(*SkippedBlockError); ok {
		*target = se
		return true
	}
	return false
}
