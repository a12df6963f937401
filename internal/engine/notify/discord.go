package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"monitorflow/internal/platform/config"
)

// Embed is the rich message sent to the user's direct channel.
type Embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Color       int          `json:"color"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// DiscordClient sends event alerts over Discord's REST API: open a DM
// channel with the recipient, then post an embed into it.
type DiscordClient struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

func NewDiscordClient(cfg config.DiscordConfig) *DiscordClient {
	return &DiscordClient{
		token:      cfg.BotToken,
		baseURL:    cfg.APIBaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// SendEventAlert delivers one embed to the user identified by their
// Discord id.
func (d *DiscordClient) SendEventAlert(ctx context.Context, recipientID string, embed Embed) error {
	channelID, err := d.createDM(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("create dm channel: %w", err)
	}
	if err := d.sendEmbed(ctx, channelID, embed); err != nil {
		return fmt.Errorf("send embed: %w", err)
	}
	return nil
}

func (d *DiscordClient) createDM(ctx context.Context, recipientID string) (string, error) {
	body := map[string]string{"recipient_id": recipientID}

	var response struct {
		ID string `json:"id"`
	}
	if err := d.post(ctx, "/users/@me/channels", body, &response); err != nil {
		return "", err
	}
	return response.ID, nil
}

func (d *DiscordClient) sendEmbed(ctx context.Context, channelID string, embed Embed) error {
	body := map[string]interface{}{
		"embeds": []Embed{embed},
	}
	return d.post(ctx, "/channels/"+channelID+"/messages", body, nil)
}

func (d *DiscordClient) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bot "+d.token)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord API returned %d: %s", resp.StatusCode, string(snippet))
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
