package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultMailerLiteURL is the production MailerLite API base.
const DefaultMailerLiteURL = "https://connect.mailerlite.com/api"

// MailingList subscribes customers to the shop's MailerLite group.
//
// A rejected subscription (duplicate, bad address, quota) is logged
// and swallowed: the storefront deliberately never leaks mailing-list
// integration errors to the end user. Only transport failures are
// returned.
type MailingList struct {
	baseURL   string
	token     string
	groupName string
	client    *http.Client
}

func NewMailingList(baseURL, token, groupName string) *MailingList {
	if baseURL == "" {
		baseURL = DefaultMailerLiteURL
	}
	return &MailingList{
		baseURL:   baseURL,
		token:     token,
		groupName: groupName,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Subscribe adds the email to the configured group. The group is
// resolved by name first; if the lookup finds nothing the subscriber
// is still created, just ungrouped.
func (m *MailingList) Subscribe(ctx context.Context, email string) error {
	groupID := m.findGroup(ctx)

	body := map[string]interface{}{"email": email}
	if groupID != "" {
		body["groups"] = []string{groupID}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal subscriber: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/subscribers", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build subscribe request: %w", err)
	}
	m.setHeaders(req)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("subscribe request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		log.Warn().Int("status", resp.StatusCode).Msg("mailing list rejected subscriber")
	}
	return nil
}

// findGroup resolves the configured group name to an id. Any failure
// here degrades to an ungrouped subscription.
func (m *MailingList) findGroup(ctx context.Context) string {
	if m.groupName == "" {
		return ""
	}

	u := fmt.Sprintf("%s/groups?filter[name]=%s", m.baseURL, url.QueryEscape(m.groupName))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return ""
	}
	m.setHeaders(req)

	resp, err := m.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("mailing list group lookup failed")
		return ""
	}
	defer resp.Body.Close()

	var result struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil || len(result.Data) == 0 {
		return ""
	}
	return result.Data[0].ID
}

func (m *MailingList) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.token)
}
