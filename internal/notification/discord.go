package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/forest-guardian/geotile-dataset/internal/properties"
)

type DiscordMessage struct {
	Embeds []DiscordEmbed `json:"embeds"`
}

type DiscordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

const (
	colorRed    = 16711680
	colorGreen  = 65280
	colorYellow = 16776960
)

// Discord posts run summaries to webhooks. An empty URL disables that kind
// of notification.
type Discord struct {
	ErrorURL   string
	SuccessURL string
	Client     *http.Client
}

func NewDiscord(cfg properties.Discord) *Discord {
	return &Discord{
		ErrorURL:   cfg.ErrorURL,
		SuccessURL: cfg.SuccessURL,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *Discord) Error(errorMessage string) error {
	if d == nil {
		return nil
	}
	return d.send(d.ErrorURL, DiscordEmbed{
		Title:       "🚨 Error Notification",
		Description: fmt.Sprintf("An error occurred: %s", errorMessage),
		Color:       colorRed,
	})
}

func (d *Discord) Warning(warningMessage string) error {
	if d == nil {
		return nil
	}
	return d.send(d.ErrorURL, DiscordEmbed{
		Title:       "⚠️ Warning Notification",
		Description: warningMessage,
		Color:       colorYellow,
	})
}

func (d *Discord) Success(successMessage string) error {
	if d == nil {
		return nil
	}
	return d.send(d.SuccessURL, DiscordEmbed{
		Title:       "✅ Success Notification",
		Description: successMessage,
		Color:       colorGreen,
	})
}

func (d *Discord) send(url string, embed DiscordEmbed) error {
	if url == "" {
		return nil
	}

	payload, err := json.Marshal(DiscordMessage{Embeds: []DiscordEmbed{embed}})
	if err != nil {
		return err
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Post(url, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send Discord notification, status code: %d", resp.StatusCode)
	}

	return nil
}
