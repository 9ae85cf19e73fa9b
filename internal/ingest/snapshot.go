package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"featureengine/internal/types"
)

// snapshotClient is shared across FetchSnapshot calls; REST snapshot fetch
// is off the hot path (only called on Reconciliation/reinitialize), so a
// generous timeout is fine.
var snapshotClient = &http.Client{Timeout: 5 * time.Second}

type wireSnapshot struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// FetchDerivativesSnapshot and FetchSpotSnapshot retrieve a REST order-book
// snapshot to re-establish a Reconciler after it signals Reinitialize.
func FetchDerivativesSnapshot(ctx context.Context, symbol string) (types.DepthSnapshot, error) {
	url := fmt.Sprintf("https://fapi.binance.com/fapi/v1/depth?symbol=%s&limit=1000", symbol)
	return fetchSnapshot(ctx, url)
}

func FetchSpotSnapshot(ctx context.Context, symbol string) (types.DepthSnapshot, error) {
	url := fmt.Sprintf("https://api.binance.com/api/v3/depth?symbol=%s&limit=1000", symbol)
	return fetchSnapshot(ctx, url)
}

func fetchSnapshot(ctx context.Context, url string) (types.DepthSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return types.DepthSnapshot{}, err
	}

	resp, err := snapshotClient.Do(req)
	if err != nil {
		return types.DepthSnapshot{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return types.DepthSnapshot{}, fmt.Errorf("snapshot fetch: HTTP %d: %s", resp.StatusCode, body)
	}

	var raw wireSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return types.DepthSnapshot{}, fmt.Errorf("snapshot decode: %w", err)
	}

	return types.DepthSnapshot{
		LastUpdateID: raw.LastUpdateID,
		Bids:         parseLevels(raw.Bids),
		Asks:         parseLevels(raw.Asks),
	}, nil
}
