package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/barrdunn/dutywatch-backend/internal/core"
)

// HTTPSource polls an upstream JSON feed for upcoming pairing identities.
// The feed is the already-parsed output of the calendar collaborator:
//
//	{"pairings": [{"pairing_id": "W3086", "report_time": "2024-01-10T06:00:00Z"}]}
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates a source polling the given URL.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type feedEntry struct {
	PairingID  string `json:"pairing_id"`
	ReportTime string `json:"report_time"`
}

type feedDocument struct {
	Pairings []feedEntry `json:"pairings"`
}

// Upcoming fetches and decodes the feed. Entries with a missing id or an
// unparseable report time are rejected as a unit so a half-broken feed
// never half-updates the reference set.
func (s *HTTPSource) Upcoming(ctx context.Context) ([]core.PairingKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("pairing feed returned status %d", resp.StatusCode)
	}

	var doc feedDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode pairing feed: %w", err)
	}

	keys := make([]core.PairingKey, 0, len(doc.Pairings))
	for _, e := range doc.Pairings {
		if e.PairingID == "" {
			return nil, fmt.Errorf("pairing feed entry missing pairing_id")
		}
		reportTime, err := core.ParseTime(e.ReportTime)
		if err != nil {
			return nil, fmt.Errorf("pairing feed entry %s: bad report_time %q", e.PairingID, e.ReportTime)
		}
		keys = append(keys, core.PairingKey{PairingID: e.PairingID, ReportTime: reportTime})
	}
	return keys, nil
}
