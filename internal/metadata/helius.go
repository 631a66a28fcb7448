package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sittingbulll/tokenwatch/internal/retry"
)

// RPCClient looks up on-chain token metadata through the indexing provider
// API. It is the fallback path when the webhook instructions carry no
// decodable content URI.
type RPCClient struct {
	apiURL string
	apiKey string
	client *http.Client
	logger *slog.Logger
}

func NewRPCClient(apiURL, apiKey string, logger *slog.Logger) *RPCClient {
	return &RPCClient{
		apiURL: apiURL,
		apiKey: apiKey,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger.With("component", "rpc_metadata"),
	}
}

type tokenMetadataEntry struct {
	OnChainMetadata struct {
		Metadata struct {
			Data struct {
				Name   string `json:"name"`
				Symbol string `json:"symbol"`
				URI    string `json:"uri"`
			} `json:"data"`
		} `json:"metadata"`
	} `json:"onChainMetadata"`
}

// TokenURI returns the off-chain content URI registered on chain for mint,
// or "" when the provider has no record of one.
func (c *RPCClient) TokenURI(ctx context.Context, mint string) (string, error) {
	payload, err := json.Marshal(map[string]any{"mintAccounts": []string{mint}})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v0/token-metadata?api-key=%s", c.apiURL, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token metadata request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("token metadata request: http status %d", resp.StatusCode)
		if retry.StatusTransient(resp.StatusCode) {
			return "", retry.Transient(err)
		}
		return "", err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	var entries []tokenMetadataEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return "", fmt.Errorf("decode token metadata: %w", err)
	}
	if len(entries) == 0 {
		return "", nil
	}

	uri := entries[0].OnChainMetadata.Metadata.Data.URI
	if uri == "" {
		c.logger.Debug("no content uri registered on chain", "mint", mint)
	}
	return uri, nil
}
