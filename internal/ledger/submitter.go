package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Submitter sends a payload to the distributed ledger and returns the
// transaction id and consensus timestamp the ledger assigned.
type Submitter interface {
	Submit(ctx context.Context, payload []byte) (txID string, consensusAt time.Time, err error)
}

// RESTSubmitter posts messages to an HCS relay endpoint. The relay owns the
// operator key; this service only ever sees opaque transaction ids.
type RESTSubmitter struct {
	endpoint string
	topicID  string
	client   *http.Client
}

func NewRESTSubmitter(endpoint, topicID string) *RESTSubmitter {
	return &RESTSubmitter{
		endpoint: endpoint,
		topicID:  topicID,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *RESTSubmitter) Submit(ctx context.Context, payload []byte) (string, time.Time, error) {
	body, err := json.Marshal(map[string]any{
		"topic_id": s.topicID,
		"message":  string(payload),
	})
	if err != nil {
		return "", time.Time{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/topics/messages", bytes.NewReader(body))
	if err != nil {
		return "", time.Time{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", time.Time{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", time.Time{}, fmt.Errorf("ledger relay returned %d", resp.StatusCode)
	}

	var out struct {
		TransactionID string    `json:"transaction_id"`
		ConsensusAt   time.Time `json:"consensus_timestamp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", time.Time{}, err
	}
	return out.TransactionID, out.ConsensusAt, nil
}
