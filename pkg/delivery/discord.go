package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ghbridge/pkg/notify"

	"github.com/bwmarrin/discordgo"
	"github.com/hashicorp/go-cleanhttp"
)

// DeliveryError describes a failed webhook call. Status is zero when no
// HTTP response was received.
type DeliveryError struct {
	Method string `json:"method"`
	URL    string `json:"url"`
	Status int    `json:"status"`
	Body   string `json:"body"`
}

func (e *DeliveryError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Body)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.Status, e.Body)
}

// Config configures a Discord webhook client.
type Config struct {
	WebhookURL string
	Username   string
	AvatarURL  string
	Timeout    time.Duration
	// HTTPClient replaces the pooled default client.
	HTTPClient *http.Client
}

// Client delivers notify.Message values to one Discord webhook. It makes
// exactly one HTTP call per Send or Edit.
type Client struct {
	session   *discordgo.Session
	target    string
	webhookID string
	token     string
	username  string
	avatarURL string
}

// New builds a client for cfg.WebhookURL.
func New(cfg Config) (*Client, error) {
	session, err := discordgo.New("")
	if err != nil {
		return nil, err
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
		httpClient.Timeout = cfg.Timeout
	}
	session.Client = httpClient
	session.MaxRestRetries = 0
	session.ShouldRetryOnRateLimit = false

	c := &Client{session: session, username: cfg.Username, avatarURL: cfg.AvatarURL}
	return c.ForURL(cfg.WebhookURL)
}

// ForURL returns a client for another webhook that shares this client's
// session and identity settings.
func (c *Client) ForURL(raw string) (*Client, error) {
	id, token, err := ParseWebhookURL(raw)
	if err != nil {
		return nil, err
	}
	next := *c
	next.target, next.webhookID, next.token = raw, id, token
	return &next, nil
}

// ParseWebhookURL extracts the id and token from
// https://discord.com/api/webhooks/{id}/{token}.
func ParseWebhookURL(raw string) (id, token string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("invalid webhook url: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", "", fmt.Errorf("invalid webhook url %q: unsupported scheme", raw)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, part := range parts {
		if part == "webhooks" && i+2 < len(parts) && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("invalid webhook url %q: missing id or token", raw)
}

// Target returns the webhook URL this client posts to.
func (c *Client) Target() string {
	return c.target
}

// Send executes the webhook and waits for the created message id.
func (c *Client) Send(ctx context.Context, msg notify.Message) (string, error) {
	params := &discordgo.WebhookParams{
		Content:         msg.Content,
		Username:        c.username,
		AvatarURL:       c.avatarURL,
		Embeds:          []*discordgo.MessageEmbed{embedOf(msg)},
		AllowedMentions: allowedMentions(),
	}
	if msg.SuppressNotifications {
		params.Flags = discordgo.MessageFlagsSuppressNotifications
	}
	sent, err := c.session.WebhookExecute(c.webhookID, c.token, true, params, discordgo.WithContext(ctx))
	if err != nil {
		return "", c.wrap(http.MethodPost, err)
	}
	if sent == nil || sent.ID == "" {
		return "", &DeliveryError{Method: http.MethodPost, URL: c.redacted(), Body: "response carried no message id"}
	}
	return sent.ID, nil
}

// Edit replaces the content and embed of a message sent earlier.
func (c *Client) Edit(ctx context.Context, messageID string, msg notify.Message) error {
	content := msg.Content
	embeds := []*discordgo.MessageEmbed{embedOf(msg)}
	edit := &discordgo.WebhookEdit{
		Content:         &content,
		Embeds:          &embeds,
		AllowedMentions: allowedMentions(),
	}
	if _, err := c.session.WebhookMessageEdit(c.webhookID, c.token, messageID, edit, discordgo.WithContext(ctx)); err != nil {
		return c.wrap(http.MethodPatch, err)
	}
	return nil
}

func (c *Client) wrap(method string, err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		return &DeliveryError{
			Method: method,
			URL:    c.redacted(),
			Status: restErr.Response.StatusCode,
			Body:   string(restErr.ResponseBody),
		}
	}
	var rateErr *discordgo.RateLimitError
	if errors.As(err, &rateErr) {
		return &DeliveryError{
			Method: method,
			URL:    c.redacted(),
			Status: http.StatusTooManyRequests,
			Body:   rateErr.Error(),
		}
	}
	return &DeliveryError{Method: method, URL: c.redacted(), Body: err.Error()}
}

// redacted hides the webhook token in error messages.
func (c *Client) redacted() string {
	if c.token == "" {
		return c.target
	}
	return strings.Replace(c.target, c.token, "***", 1)
}

func allowedMentions() *discordgo.MessageAllowedMentions {
	return &discordgo.MessageAllowedMentions{
		Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers},
	}
}

// Discord rejects embeds whose text exceeds these lengths.
const (
	maxTitle       = 256
	maxDescription = 4096
	maxFieldName   = 256
	maxFieldValue  = 1024
	maxAuthorName  = 256
	maxFooter      = 2048
)

func capped(s string, limit int) string {
	return notify.Truncate(s, limit-len(notify.TruncationMarker))
}

func embedOf(msg notify.Message) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       capped(msg.Title, maxTitle),
		Description: capped(msg.Description, maxDescription),
		URL:         msg.URL,
		Color:       msg.Color,
	}
	if !msg.Timestamp.IsZero() {
		embed.Timestamp = msg.Timestamp.UTC().Format(time.RFC3339)
	}
	if msg.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: capped(msg.Footer, maxFooter)}
	}
	if msg.Author != nil {
		embed.Author = &discordgo.MessageEmbedAuthor{
			Name:    capped(msg.Author.Name, maxAuthorName),
			URL:     msg.Author.URL,
			IconURL: msg.Author.IconURL,
		}
	}
	for _, field := range msg.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   capped(field.Name, maxFieldName),
			Value:  capped(field.Value, maxFieldValue),
			Inline: field.Inline,
		})
	}
	return embed
}
