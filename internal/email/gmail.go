package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"automail/internal/httpx"
)

// GmailClient talks to the Gmail API for one account
type GmailClient struct {
	service *gmail.Service
	userID  string
	config  *GmailConfig
	logger  *slog.Logger
}

// GmailConfig holds Gmail API configuration
type GmailConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	AccessToken  string
	UserEmail    string

	// Request limits
	MaxResults     int64
	RequestTimeout time.Duration
	RateLimitDelay time.Duration
}

// NewGmailClient creates a Gmail API client. All traffic runs through the
// retrying transport, below the OAuth2 layer so refreshed tokens are applied
// before each attempt.
func NewGmailClient(ctx context.Context, config *GmailConfig, logger *slog.Logger) (*GmailClient, error) {
	oauthConfig := &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Scopes:       []string{gmail.GmailModifyScope},
		Endpoint:     google.Endpoint,
	}

	token := &oauth2.Token{
		AccessToken:  config.AccessToken,
		RefreshToken: config.RefreshToken,
		TokenType:    "Bearer",
	}

	retry := httpx.NewTransport(nil)
	retry.OnRetry = func(attempt int, delay time.Duration, reason string) {
		logger.Warn("Retrying Gmail request",
			"attempt", attempt,
			"delay", delay,
			"reason", reason)
	}

	// Base client carrying the retry transport for the oauth2 layer to wrap
	baseCtx := context.WithValue(ctx, oauth2.HTTPClient, &http.Client{
		Transport: retry,
		Timeout:   config.RequestTimeout,
	})
	httpClient := oauthConfig.Client(baseCtx, token)

	service, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	userID := "me"
	if config.UserEmail != "" {
		userID = config.UserEmail
	}

	return &GmailClient{
		service: service,
		userID:  userID,
		config:  config,
		logger:  logger,
	}, nil
}

// ListMessageIDs lists message ids matching a query, one page at a time
func (g *GmailClient) ListMessageIDs(ctx context.Context, query, pageToken string) (*ListPage, error) {
	time.Sleep(g.config.RateLimitDelay)

	call := g.service.Users.Messages.List(g.userID).Q(query).Context(ctx)
	if g.config.MaxResults > 0 {
		call = call.MaxResults(g.config.MaxResults)
	}
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("message listing failed: %w", mapAPIError(err))
	}

	page := &ListPage{NextPageToken: resp.NextPageToken}
	for _, msg := range resp.Messages {
		page.IDs = append(page.IDs, msg.Id)
	}

	return page, nil
}

// GetMessage retrieves the full raw message
func (g *GmailClient) GetMessage(ctx context.Context, id string) (*gmail.Message, error) {
	msg, err := g.service.Users.Messages.Get(g.userID, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, mapAPIError(err))
	}
	return msg, nil
}

// FetchMessage retrieves and parses a message
func (g *GmailClient) FetchMessage(ctx context.Context, id string, labels *LabelMap) (*Message, error) {
	raw, err := g.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	return ParseMessage(raw, labels), nil
}

// ListLabels retrieves all labels for the account
func (g *GmailClient) ListLabels(ctx context.Context) ([]Label, error) {
	resp, err := g.service.Users.Labels.List(g.userID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", mapAPIError(err))
	}

	labels := make([]Label, 0, len(resp.Labels))
	for _, l := range resp.Labels {
		labels = append(labels, Label{ID: l.Id, Name: l.Name})
	}

	return labels, nil
}

// LabelMap lists labels and builds a lookup map
func (g *GmailClient) LabelMap(ctx context.Context) (*LabelMap, error) {
	labels, err := g.ListLabels(ctx)
	if err != nil {
		return nil, err
	}
	return NewLabelMap(labels), nil
}

// CreateLabel creates a user label visible in both label and message lists
func (g *GmailClient) CreateLabel(ctx context.Context, name string) (*Label, error) {
	created, err := g.service.Users.Labels.Create(g.userID, &gmail.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create label %q: %w", name, mapAPIError(err))
	}

	return &Label{ID: created.Id, Name: created.Name}, nil
}

// ModifyLabels adds and removes labels on a message in a single call, so
// the message never ends up half-moved.
func (g *GmailClient) ModifyLabels(ctx context.Context, id string, add, remove []string) error {
	_, err := g.service.Users.Messages.Modify(g.userID, id, &gmail.ModifyMessageRequest{
		AddLabelIds:    add,
		RemoveLabelIds: remove,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to modify labels on message %s: %w", id, mapAPIError(err))
	}

	return nil
}

// HealthCheck verifies the Gmail connection and credentials are working
func (g *GmailClient) HealthCheck(ctx context.Context) error {
	profile, err := g.service.Users.GetProfile(g.userID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to get Gmail profile: %w", mapAPIError(err))
	}

	g.logger.Info("Connected to Gmail account", "email", profile.EmailAddress)
	return nil
}

// Close cleans up resources
func (g *GmailClient) Close() error {
	// Gmail API client doesn't require explicit cleanup
	return nil
}

// mapAPIError converts Gmail API status errors to package sentinels
func mapAPIError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusForbidden:
			return ErrPermissionDenied
		}
	}
	return err
}
