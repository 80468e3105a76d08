// Package gmail provides the mailbox source adapter backed by the Gmail REST
// API. Messages with attachments are listed per mailbox query and surfaced as
// remote items whose attachments are keyed by file name.
package gmail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/otomatty/saedgewell-sample-sub003/internal/domain"
	"github.com/otomatty/saedgewell-sample-sub003/internal/port/source"
)

const (
	// SourceName is the registry name for this adapter.
	SourceName = "mailbox"

	// DefaultPageSize is the number of messages requested per listing call.
	DefaultPageSize = 50

	// Credentials keys for the OAuth client used to mint access tokens.
	CredClientID     = "client_id"
	CredClientSecret = "client_secret"
	CredRefreshToken = "refresh_token"

	gmailUser = "me"
)

func init() {
	source.Register(SourceName, New)
}

// Client lists messages of a Gmail mailbox.
type Client struct {
	svc      *gmailapi.Service
	pageSize int64
	since    time.Time
}

// New creates a Gmail client from a source config. The refresh token is
// exchanged for access tokens automatically by the oauth2 transport.
func New(cfg source.Config) (source.Source, error) {
	clientID := cfg.Credentials[CredClientID]
	clientSecret := cfg.Credentials[CredClientSecret]
	refreshToken := cfg.Credentials[CredRefreshToken]
	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, fmt.Errorf("gmail source: %w", domain.ErrMissingCredentials)
	}

	oauthCfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmailapi.GmailReadonlyScope},
	}
	ts := oauthCfg.TokenSource(context.Background(), &oauth2.Token{RefreshToken: refreshToken})

	opts := []option.ClientOption{option.WithTokenSource(ts)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}

	svc, err := gmailapi.NewService(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("gmail source: create service: %w", err)
	}

	pageSize := int64(cfg.PageSize)
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &Client{svc: svc, pageSize: pageSize, since: cfg.Since}, nil
}

// Name implements source.Source.
func (c *Client) Name() string { return SourceName }

// ListItems implements source.Source. The source reference is a Gmail search
// query (e.g. "has:attachment" or "label:receipts has:attachment"); the page
// token is Gmail's opaque nextPageToken.
func (c *Client) ListItems(ctx context.Context, sourceRef, pageToken string) (*source.Page, error) {
	call := c.svc.Users.Messages.List(gmailUser).
		Q(IncrementalQuery(sourceRef, c.since)).
		MaxResults(c.pageSize).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, wrapUpstream("list messages", err)
	}

	items := make([]source.RemoteItem, 0, len(resp.Messages))
	for _, ref := range resp.Messages {
		msg, err := c.svc.Users.Messages.Get(gmailUser, ref.Id).
			Format("full").
			Context(ctx).
			Do()
		if err != nil {
			return nil, wrapUpstream(fmt.Sprintf("get message %s", ref.Id), err)
		}
		items = append(items, mapMessage(msg))
	}

	return &source.Page{
		Items:          items,
		NextToken:      resp.NextPageToken,
		EstimatedTotal: int(resp.ResultSizeEstimate),
	}, nil
}

// mapMessage converts a full-format Gmail message into a remote item.
func mapMessage(msg *gmailapi.Message) source.RemoteItem {
	it := source.RemoteItem{
		ID:        msg.Id,
		Excerpt:   msg.Snippet,
		Labels:    msg.LabelIds,
		UpdatedAt: time.UnixMilli(msg.InternalDate).UTC(),
	}
	if msg.Payload != nil {
		it.Title = header(msg.Payload.Headers, "Subject")
		it.Author = header(msg.Payload.Headers, "From")
		it.Attachments = collectAttachments(msg.Payload)
	}
	return it
}

func header(headers []*gmailapi.MessagePartHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// collectAttachments walks the MIME part tree and returns every part that
// carries a file name.
func collectAttachments(payload *gmailapi.MessagePart) []source.RemoteAttachment {
	var atts []source.RemoteAttachment

	var walk func(parts []*gmailapi.MessagePart)
	walk = func(parts []*gmailapi.MessagePart) {
		for _, part := range parts {
			if part.Filename != "" && part.Body != nil {
				atts = append(atts, source.RemoteAttachment{
					FileName:  part.Filename,
					MimeType:  part.MimeType,
					SizeBytes: part.Body.Size,
					RemoteRef: part.Body.AttachmentId,
				})
			}
			walk(part.Parts)
		}
	}
	walk(payload.Parts)

	return atts
}

// wrapUpstream converts a googleapi error into the transport-agnostic
// upstream error understood by the retry layer.
func wrapUpstream(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &source.UpstreamError{Op: op, StatusCode: gerr.Code, Err: err}
	}
	return &source.UpstreamError{Op: op, Err: err}
}

// IncrementalQuery appends Gmail's after: filter to a mailbox query so a
// re-sync only lists messages received since the previous run.
func IncrementalQuery(query string, since time.Time) string {
	if since.IsZero() {
		return query
	}
	filter := fmt.Sprintf("after:%d", since.Unix())
	if query == "" {
		return filter
	}
	return query + " " + filter
}
