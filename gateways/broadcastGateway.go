package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	"finco/txcoordinator/common"
	"finco/txcoordinator/errors"
)

// broadcastRequest is the wire shape sent to the per-chain node gateway.
// Signatures travel as collected artifacts; this service never holds keys.
type broadcastRequest struct {
	Payload    common.TxPayload  `json:"payload"`
	Signatures map[string]string `json:"signatures"`
}

type broadcastResponse struct {
	TxHash  string `json:"txHash"`
	Message string `json:"message"`
}

// HTTPBroadcaster implements coordinator.Broadcaster against the org's node
// gateway fleet, one endpoint per blockchain. The caller bounds each request
// with a context deadline.
type HTTPBroadcaster struct {
	Endpoints   map[string]string
	AccessToken string
	Client      *http.Client
}

func NewHTTPBroadcaster(cfg common.BroadcastConfigurations, accessToken string) *HTTPBroadcaster {
	return &HTTPBroadcaster{
		Endpoints:   cfg.Endpoints,
		AccessToken: accessToken,
		Client:      &http.Client{},
	}
}

func (b *HTTPBroadcaster) Broadcast(ctx context.Context, p *common.TransactionProposal) (string, error) {
	endpoint, ok := b.Endpoints[p.Blockchain]
	if !ok {
		return "", fmt.Errorf("no broadcast endpoint configured for %s", p.Blockchain)
	}

	body, err := json.Marshal(broadcastRequest{
		Payload:    p.Payload,
		Signatures: p.Signatures,
	})
	if err != nil {
		return "", errors.BuildErrMsg(errors.MarshallError, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.BuildErrMsg(errors.BroadcastHTTPError, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.AccessToken)

	log.WithFields(log.Fields{"proposalId": p.ProposalID, "blockchainId": p.Blockchain}).Info("submitting transaction to broadcast gateway")

	resp, err := b.Client.Do(req)
	if err != nil {
		return "", errors.BuildAndLogErrorMsg(errors.BroadcastHTTPError, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.BuildErrMsg(errors.BroadcastHTTPError, err)
	}

	var out broadcastResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", errors.BuildErrMsg(errors.UnmarshallError, err)
	}

	if resp.StatusCode != http.StatusOK || out.TxHash == "" {
		return "", fmt.Errorf("broadcast rejected (%d): %s", resp.StatusCode, out.Message)
	}
	return out.TxHash, nil
}
