// internal/service/verifier/sources.go
package verifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"subgate-service/internal/domain/payment"
)

// MessageSource fetches the most recent raw messages from one payment
// notification channel.
type MessageSource interface {
	Name() string
	Fetch(ctx context.Context, limit int) ([]payment.RawMessage, error)
}

const (
	SourceVk = "vk"

	defaultVkAPIBase = "https://api.vk.com/method"
	vkAPIVersion     = "5.199"
)

// VkMessageSource polls a VK dialog where bank transfer notifications are
// relayed, via messages.getHistory.
type VkMessageSource struct {
	httpClient *http.Client
	apiBase    string
	token      string
	peerID     int64
}

func NewVkMessageSource(token string, peerID int64) *VkMessageSource {
	return &VkMessageSource{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiBase:    defaultVkAPIBase,
		token:      token,
		peerID:     peerID,
	}
}

func (s *VkMessageSource) Name() string { return SourceVk }

type vkHistoryResponse struct {
	Response struct {
		Items []struct {
			ID   int64  `json:"id"`
			Date int64  `json:"date"`
			Text string `json:"text"`
		} `json:"items"`
	} `json:"response"`
	Error *struct {
		Code    int    `json:"error_code"`
		Message string `json:"error_msg"`
	} `json:"error"`
}

func (s *VkMessageSource) Fetch(ctx context.Context, limit int) ([]payment.RawMessage, error) {
	params := url.Values{}
	params.Set("access_token", s.token)
	params.Set("v", vkAPIVersion)
	params.Set("peer_id", strconv.FormatInt(s.peerID, 10))
	params.Set("count", strconv.Itoa(limit))

	endpoint := s.apiBase + "/messages.getHistory?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build vk request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vk request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vk responded %d", resp.StatusCode)
	}
	var parsed vkHistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode vk response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("vk api error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}

	messages := make([]payment.RawMessage, 0, len(parsed.Response.Items))
	for _, item := range parsed.Response.Items {
		messages = append(messages, payment.RawMessage{
			Source:     SourceVk,
			Text:       item.Text,
			ReceivedAt: time.Unix(item.Date, 0).UTC(),
			Meta: map[string]interface{}{
				"id":   item.ID,
				"date": item.Date,
			},
		})
	}
	return messages, nil
}
