// Package nodeclient is a thin typed HTTP facade over one node's API
// surface (§6), plus a cluster-wide retry fan-out.
package nodeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jihwankim/nomos-harness/pkg/scenario"
)

// TransportError wraps an HTTP/decoding failure from a node client call.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("nodeclient: %s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// Client is a typed facade over one node's HTTP API.
type Client struct {
	BaseURL    string
	TestingURL string
	HTTP       *http.Client
	Node       scenario.NodeDescriptor
}

// New builds a Client against a node's API base URL.
func New(node scenario.NodeDescriptor, baseURL, testingURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		TestingURL: testingURL,
		HTTP:       &http.Client{Timeout: 10 * time.Second},
		Node:       node,
	}
}

type consensusInfoResponse struct {
	Height uint64            `json:"height"`
	Tip    scenario.HeaderID `json:"tip"`
}

// ConsensusInfo fetches the node's current consensus height and tip.
func (c *Client) ConsensusInfo(ctx context.Context) (height uint64, tip scenario.HeaderID, err error) {
	var resp consensusInfoResponse
	if err := c.getJSON(ctx, "/consensus_info", &resp); err != nil {
		return 0, scenario.HeaderID{}, &TransportError{Op: "consensus_info", Err: err}
	}
	return resp.Height, resp.Tip, nil
}

// Tip satisfies blockfeed.Source.
func (c *Client) Tip(ctx context.Context) (scenario.HeaderID, uint64, error) {
	height, tip, err := c.ConsensusInfo(ctx)
	return tip, height, err
}

// Block satisfies blockfeed.Source: fetches a block by header id, or returns
// (nil, nil) if the node does not have it.
func (c *Client) Block(ctx context.Context, id scenario.HeaderID) (*scenario.Block, error) {
	var block scenario.Block
	found, err := c.postJSON(ctx, "/storage_block", id, &block)
	if err != nil {
		return nil, &TransportError{Op: "storage_block", Err: err}
	}
	if !found {
		return nil, nil
	}
	return &block, nil
}

// SubmitTransaction submits a signed transaction to the mempool.
func (c *Client) SubmitTransaction(ctx context.Context, tx []byte) error {
	var discard struct{}
	_, err := c.postJSON(ctx, "/mempool/add_tx", json.RawMessage(tx), &discard)
	if err != nil {
		return &TransportError{Op: "mempool/add_tx", Err: err}
	}
	return nil
}

type networkInfoResponse struct {
	NPeers int `json:"n_peers"`
}

// NetworkInfo returns basic peer-count info.
func (c *Client) NetworkInfo(ctx context.Context) (peers int, err error) {
	var resp networkInfoResponse
	if err := c.getJSON(ctx, "/network_info", &resp); err != nil {
		return 0, &TransportError{Op: "network_info", Err: err}
	}
	return resp.NPeers, nil
}

type membershipResponse struct {
	Assignations map[string][]string `json:"assignations"`
}

// DAGetMembership fetches the DA subnet assignation for a session.
func (c *Client) DAGetMembership(ctx context.Context, session string) (map[string][]string, error) {
	var resp membershipResponse
	if _, err := c.postJSON(ctx, "/da/get_membership", session, &resp); err != nil {
		return nil, &TransportError{Op: "da/get_membership", Err: err}
	}
	return resp.Assignations, nil
}

// PublishBlob publishes a blob on a channel through this node's executor
// dispersal surface, returning the blob's msg id.
func (c *Client) PublishBlob(ctx context.Context, channel scenario.ChannelID, payload []byte) (scenario.MsgID, error) {
	req := struct {
		Channel scenario.ChannelID `json:"channel"`
		Payload []byte             `json:"payload"`
	}{channel, payload}
	var resp struct {
		MsgID scenario.MsgID `json:"msg_id"`
	}
	if _, err := c.postJSON(ctx, "/da/publish_blob", req, &resp); err != nil {
		return scenario.MsgID{}, &TransportError{Op: "da/publish_blob", Err: err}
	}
	return resp.MsgID, nil
}

// SubmitInscription submits a deterministic channel-inscription transaction,
// returning the resulting msg id.
func (c *Client) SubmitInscription(ctx context.Context, channel scenario.ChannelID, tx []byte) (scenario.MsgID, error) {
	var resp struct {
		MsgID scenario.MsgID `json:"msg_id"`
	}
	if _, err := c.postJSON(ctx, "/mempool/add_tx", json.RawMessage(tx), &resp); err != nil {
		return scenario.MsgID{}, &TransportError{Op: "inscribe", Err: err}
	}
	return resp.MsgID, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) (bool, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(buf))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, err
	}
	if resp.StatusCode >= 300 {
		return false, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(data))
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(data))
	}
	return json.Unmarshal(data, out)
}
