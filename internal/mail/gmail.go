package mail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/jonathan/job-tracker/internal/retry"
	"github.com/jonathan/job-tracker/internal/secrets"
	"github.com/jonathan/job-tracker/internal/types"
)

// GoogleOAuthConfig returns the OAuth client configuration for read-only Gmail access.
func GoogleOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}
}

// TokenStore loads and persists a user's OAuth token.
type TokenStore interface {
	LoadToken(ctx context.Context, userID uuid.UUID) (*oauth2.Token, error)
	SaveToken(ctx context.Context, userID uuid.UUID, token *oauth2.Token) error
}

// SealedTokenStore keeps tokens sealed inside the user's MailConnection row.
type SealedTokenStore struct {
	connections ConnectionStore
	sealer      *secrets.Sealer
}

// NewSealedTokenStore creates a token store over the connection store.
func NewSealedTokenStore(connections ConnectionStore, sealer *secrets.Sealer) *SealedTokenStore {
	return &SealedTokenStore{connections: connections, sealer: sealer}
}

// LoadToken implements TokenStore.
func (s *SealedTokenStore) LoadToken(ctx context.Context, userID uuid.UUID) (*oauth2.Token, error) {
	conn, err := s.connections.GetMailConnection(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load mail connection: %w", err)
	}
	if conn == nil || len(conn.SealedToken) == 0 {
		return nil, &AuthError{Provider: "gmail", Message: "no OAuth token stored"}
	}

	plain, err := s.sealer.Open(conn.SealedToken, []byte(userID.String()))
	if err != nil {
		return nil, &AuthError{Provider: "gmail", Message: "stored OAuth token is unreadable", Cause: err}
	}

	var tok oauth2.Token
	if err := json.Unmarshal(plain, &tok); err != nil {
		return nil, &AuthError{Provider: "gmail", Message: "stored OAuth token is malformed", Cause: err}
	}
	return &tok, nil
}

// SaveToken implements TokenStore.
func (s *SealedTokenStore) SaveToken(ctx context.Context, userID uuid.UUID, token *oauth2.Token) error {
	sealed, err := s.SealToken(userID, token)
	if err != nil {
		return err
	}
	return s.connections.UpdateMailToken(ctx, userID, sealed)
}

// SealToken encrypts a token for storage in a MailConnection.
func (s *SealedTokenStore) SealToken(userID uuid.UUID, token *oauth2.Token) ([]byte, error) {
	plain, err := json.Marshal(token)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal token: %w", err)
	}
	return s.sealer.Seal(plain, []byte(userID.String()))
}

// GmailOptions tunes the Gmail provider.
type GmailOptions struct {
	MaxResults int64         // per list page
	MaxPages   int           // bound on list pages per fetch
	Timeout    time.Duration // per API call
	Attempts   int
	Backoff    time.Duration
	// Query is appended to the after: filter, e.g. "-category:promotions"
	Query string
	// ClientOptions are passed to gmail.NewService after the OAuth client (tests set an endpoint here)
	ClientOptions []option.ClientOption
}

func (o *GmailOptions) withDefaults() {
	if o.MaxResults <= 0 {
		o.MaxResults = 100
	}
	if o.MaxPages <= 0 {
		o.MaxPages = 5
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Attempts <= 0 {
		o.Attempts = 3
	}
	if o.Backoff <= 0 {
		o.Backoff = time.Second
	}
}

// GmailProvider reads mail through the Gmail API with per-user OAuth tokens.
type GmailProvider struct {
	oauth  *oauth2.Config
	tokens TokenStore
	opts   GmailOptions
}

// NewGmailProvider creates a Gmail provider.
func NewGmailProvider(oauthCfg *oauth2.Config, tokens TokenStore, opts GmailOptions) *GmailProvider {
	opts.withDefaults()
	return &GmailProvider{oauth: oauthCfg, tokens: tokens, opts: opts}
}

// persistingTokenSource saves refreshed tokens back to the store
type persistingTokenSource struct {
	base   oauth2.TokenSource
	tokens TokenStore
	userID uuid.UUID

	mu   sync.Mutex
	last string
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		if p.last != "" {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := p.tokens.SaveToken(ctx, p.userID, tok); err != nil {
				log.Printf("[gmail] Failed to persist refreshed token for user %s: %v", p.userID, err)
			}
			cancel()
		}
		p.last = tok.AccessToken
	}
	return tok, nil
}

func (g *GmailProvider) service(ctx context.Context, userID uuid.UUID) (*gmail.Service, error) {
	tok, err := g.tokens.LoadToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	ts := &persistingTokenSource{
		base:   g.oauth.TokenSource(context.Background(), tok),
		tokens: g.tokens,
		userID: userID,
		last:   tok.AccessToken,
	}
	httpClient := oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, ts))

	opts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, g.opts.ClientOptions...)
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return svc, nil
}

// call runs one API request with a timeout and retries transient failures.
func (g *GmailProvider) call(ctx context.Context, label string, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, retry.Policy{
		Attempts:  g.opts.Attempts,
		Backoff:   g.opts.Backoff,
		Retryable: IsTransient,
		Label:     "gmail " + label,
	}, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
		return classifyGoogleError(fn(callCtx), label)
	})
}

// CheckConnection implements Provider.
func (g *GmailProvider) CheckConnection(ctx context.Context, userID uuid.UUID) error {
	svc, err := g.service(ctx, userID)
	if err != nil {
		return err
	}
	return g.call(ctx, "get profile", func(ctx context.Context) error {
		_, err := svc.Users.GetProfile("me").Context(ctx).Do()
		return err
	})
}

// FetchCandidateEmails implements Provider. Messages that fail to download or
// parse are logged and skipped.
func (g *GmailProvider) FetchCandidateEmails(ctx context.Context, userID uuid.UUID, since time.Time) ([]types.RawEmail, error) {
	svc, err := g.service(ctx, userID)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("after:%d", since.Unix())
	if q := strings.TrimSpace(g.opts.Query); q != "" {
		query += " " + q
	}

	var ids []*gmail.Message
	pageToken := ""
	for page := 0; page < g.opts.MaxPages; page++ {
		var resp *gmail.ListMessagesResponse
		err := g.call(ctx, "list messages", func(ctx context.Context) error {
			call := svc.Users.Messages.List("me").Q(query).MaxResults(g.opts.MaxResults).Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			var err error
			resp, err = call.Do()
			return err
		})
		if err != nil {
			return nil, err
		}
		ids = append(ids, resp.Messages...)
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	emails := make([]types.RawEmail, 0, len(ids))
	for _, ref := range ids {
		var msg *gmail.Message
		err := g.call(ctx, "get message", func(ctx context.Context) error {
			var err error
			msg, err = svc.Users.Messages.Get("me", ref.Id).Format("raw").Context(ctx).Do()
			return err
		})
		if err != nil {
			if IsAuthError(err) || errors.Is(err, context.Canceled) {
				return nil, err
			}
			log.Printf("[gmail] Skipping message %s: %v", ref.Id, err)
			continue
		}

		raw, err := decodeRaw(msg.Raw)
		if err != nil {
			log.Printf("[gmail] Skipping message %s: %v", ref.Id, err)
			continue
		}
		pm, err := ParseMessage(raw)
		if err != nil {
			log.Printf("[gmail] Skipping message %s: %v", ref.Id, err)
			continue
		}

		var received time.Time
		if msg.InternalDate > 0 {
			received = time.UnixMilli(msg.InternalDate)
		}
		email := pm.toRawEmail(msg.Id, msg.ThreadId, received)
		if email.ReceivedAt.Before(since) {
			continue
		}
		emails = append(emails, email)
	}
	return emails, nil
}

// decodeRaw decodes Gmail's base64url message payload, padded or not.
func decodeRaw(data string) ([]byte, error) {
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return b, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return nil, fmt.Errorf("failed to decode raw message: %w", err)
	}
	return b, nil
}
