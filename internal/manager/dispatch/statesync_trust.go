package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/nolus-protocol/nodes-manager-sub001/internal/apperrors"
)

// rpcTrustClientTimeout bounds each RPC request the trust-anchor query
// makes, matching original_source/manager/src/state_sync/rpc_client.rs's
// 10-second reqwest client.
const rpcTrustClientTimeout = 10 * time.Second

var rpcTrustClient = &http.Client{Timeout: rpcTrustClientTimeout}

// trustAnchor is the height/hash pair a state-sync config needs to verify
// against, resolved from a node's own RPC sources before dispatch.
type trustAnchor struct {
	Height uint64
	Hash   string
}

type rpcBlockResponse struct {
	Result *struct {
		Block struct {
			Header struct {
				Height string `json:"height"`
			} `json:"header"`
		} `json:"block"`
		BlockID struct {
			Hash string `json:"hash"`
		} `json:"block_id"`
	} `json:"result"`
}

// fetchTrustAnchor tries each rpcSources entry in turn, failing fast on
// the first source (no per-source retry) and returning as soon as one
// succeeds, per fetch_state_sync_params's "FAIL FAST" contract. It is
// only an error when every source fails.
func fetchTrustAnchor(ctx context.Context, rpcSources []string, trustHeightOffset uint32) (trustAnchor, error) {
	if len(rpcSources) == 0 {
		return trustAnchor{}, apperrors.Config("state_sync_rpc_sources", fmt.Errorf("no RPC sources configured"))
	}

	var lastErr error
	for _, rpcURL := range rpcSources {
		anchor, err := trustAnchorFromRPC(ctx, rpcURL, trustHeightOffset)
		if err == nil {
			return anchor, nil
		}
		lastErr = err
	}
	return trustAnchor{}, apperrors.Upstream("state sync trust anchor", lastErr.Error())
}

func trustAnchorFromRPC(ctx context.Context, rpcURL string, trustHeightOffset uint32) (trustAnchor, error) {
	latest, err := queryBlockHeight(ctx, rpcURL)
	if err != nil {
		return trustAnchor{}, err
	}

	trustHeight := uint64(0)
	if latest > int64(trustHeightOffset) {
		trustHeight = uint64(latest) - uint64(trustHeightOffset)
	}

	hash, err := queryBlockHash(ctx, rpcURL, trustHeight)
	if err != nil {
		return trustAnchor{}, err
	}
	return trustAnchor{Height: trustHeight, Hash: hash}, nil
}

func queryBlockHeight(ctx context.Context, rpcURL string) (int64, error) {
	body, err := getRPC(ctx, rpcURL+"/block")
	if err != nil {
		return 0, err
	}
	if body.Result == nil || body.Result.Block.Header.Height == "" {
		return 0, fmt.Errorf("%s: could not extract height from response", rpcURL)
	}
	height, err := strconv.ParseInt(body.Result.Block.Header.Height, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: parsing height: %w", rpcURL, err)
	}
	return height, nil
}

func queryBlockHash(ctx context.Context, rpcURL string, height uint64) (string, error) {
	body, err := getRPC(ctx, fmt.Sprintf("%s/block?height=%d", rpcURL, height))
	if err != nil {
		return "", err
	}
	if body.Result == nil || body.Result.BlockID.Hash == "" {
		return "", fmt.Errorf("%s: could not extract hash from response", rpcURL)
	}
	return body.Result.BlockID.Hash, nil
}

func getRPC(ctx context.Context, url string) (*rpcBlockResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := rpcTrustClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}

	var body rpcBlockResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", url, err)
	}
	return &body, nil
}
