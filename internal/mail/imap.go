package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/google/uuid"

	"github.com/jonathan/job-tracker/internal/retry"
	"github.com/jonathan/job-tracker/internal/secrets"
	"github.com/jonathan/job-tracker/internal/types"
)

// PasswordSource returns the IMAP password for a keychain account.
type PasswordSource func(account string) (string, error)

// IMAPOptions tunes the IMAP provider.
type IMAPOptions struct {
	MaxMessages int
	DialTimeout time.Duration
	Attempts    int
	Backoff     time.Duration
	TLSConfig   *tls.Config
}

func (o *IMAPOptions) withDefaults() {
	if o.MaxMessages <= 0 {
		o.MaxMessages = 200
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 30 * time.Second
	}
	if o.Attempts <= 0 {
		o.Attempts = 3
	}
	if o.Backoff <= 0 {
		o.Backoff = time.Second
	}
}

// IMAPProvider reads INBOX over IMAPS with a password kept in the OS keychain.
type IMAPProvider struct {
	connections ConnectionStore
	passwords   PasswordSource
	opts        IMAPOptions
}

// NewIMAPProvider creates an IMAP provider. passwords defaults to the OS keychain.
func NewIMAPProvider(connections ConnectionStore, passwords PasswordSource, opts IMAPOptions) *IMAPProvider {
	opts.withDefaults()
	if passwords == nil {
		passwords = secrets.GetIMAPPassword
	}
	return &IMAPProvider{connections: connections, passwords: passwords, opts: opts}
}

// imapSession is an authenticated client tied to the caller's context.
type imapSession struct {
	*imapclient.Client
	stop func() bool
}

// close detaches the context watcher, then logs out and closes the connection.
func (s *imapSession) close() {
	s.stop()
	logoutAndClose(s.Client)
}

// closeOnCancel closes c once ctx is done, until the returned stop is called.
func closeOnCancel(ctx context.Context, c io.Closer) (stop func() bool) {
	return context.AfterFunc(ctx, func() { _ = c.Close() })
}

// login dials and authenticates. The returned session must be released with close.
func (p *IMAPProvider) login(ctx context.Context, userID uuid.UUID) (*imapSession, error) {
	conn, err := p.connections.GetMailConnection(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load mail connection: %w", err)
	}
	if conn == nil || conn.IMAPHost == "" || conn.IMAPUsername == "" {
		return nil, &AuthError{Provider: "imap", Message: "IMAP account not configured"}
	}

	password, err := p.passwords(secrets.IMAPKeyringAccount(userID, conn.IMAPUsername))
	if err != nil {
		return nil, &AuthError{Provider: "imap", Message: "IMAP password unavailable", Cause: err}
	}

	port := conn.IMAPPort
	if port == 0 {
		port = 993
	}
	addr := net.JoinHostPort(conn.IMAPHost, strconv.Itoa(port))

	tlsCfg := p.opts.TLSConfig
	if tlsCfg == nil {
		tlsCfg = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: conn.IMAPHost}
	}

	var c *imapclient.Client
	err = retry.Do(ctx, retry.Policy{Attempts: p.opts.Attempts, Backoff: p.opts.Backoff, Retryable: IsTransient, Label: "imap dial " + addr},
		func(ctx context.Context) error {
			dialer := &tls.Dialer{NetDialer: &net.Dialer{Timeout: p.opts.DialTimeout}, Config: tlsCfg}
			netConn, err := dialer.DialContext(ctx, "tcp", addr)
			if err != nil {
				return &TransientProviderError{Provider: "imap", Message: "dial failed", Cause: err}
			}
			c = imapclient.New(netConn, nil)
			return nil
		})
	if err != nil {
		return nil, err
	}

	// Unblock pending commands if the caller gives up
	stop := closeOnCancel(ctx, c)

	if err := c.Login(conn.IMAPUsername, password).Wait(); err != nil {
		stop()
		_ = c.Close()
		return nil, classifyIMAPError(err, "login")
	}
	return &imapSession{Client: c, stop: stop}, nil
}

// CheckConnection implements Provider.
func (p *IMAPProvider) CheckConnection(ctx context.Context, userID uuid.UUID) error {
	c, err := p.login(ctx, userID)
	if err != nil {
		return err
	}
	c.close()
	return nil
}

// FetchCandidateEmails implements Provider. Messages are fetched with BODY.PEEK[]
// so the \Seen flag is left alone.
func (p *IMAPProvider) FetchCandidateEmails(ctx context.Context, userID uuid.UUID, since time.Time) ([]types.RawEmail, error) {
	c, err := p.login(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer c.close()

	if _, err := c.Select("INBOX", &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, classifyIMAPError(err, "select inbox")
	}

	// SINCE has day granularity; exact filtering happens below
	searchData, err := c.UIDSearch(&imap.SearchCriteria{Since: since}, nil).Wait()
	if err != nil {
		return nil, classifyIMAPError(err, "uid search")
	}
	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return []types.RawEmail{}, nil
	}
	if len(uids) > p.opts.MaxMessages {
		uids = uids[len(uids)-p.opts.MaxMessages:]
	}

	bodyAll := &imap.FetchItemBodySection{Specifier: imap.PartSpecifierNone, Peek: true}
	fetchCmd := c.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:          true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{bodyAll},
	})
	defer func() { _ = fetchCmd.Close() }()

	emails := make([]types.RawEmail, 0, len(uids))
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msgData := fetchCmd.Next()
		if msgData == nil {
			break
		}
		buf, err := msgData.Collect()
		if err != nil {
			return nil, classifyIMAPError(err, "fetch")
		}

		raw := buf.FindBodySection(bodyAll)
		if len(raw) == 0 {
			continue
		}
		pm, err := ParseMessage(raw)
		if err != nil {
			log.Printf("[imap] Skipping UID %d: %v", buf.UID, err)
			continue
		}

		email := pm.toRawEmail(fmt.Sprintf("imap-uid-%d", buf.UID), "", buf.InternalDate)
		if email.ReceivedAt.Before(since) {
			continue
		}
		emails = append(emails, email)
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, classifyIMAPError(err, "fetch")
	}
	return emails, nil
}

// classifyIMAPError maps server responses onto the error taxonomy.
func classifyIMAPError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var imapErr *imap.Error
	if errors.As(err, &imapErr) {
		switch imapErr.Code {
		case imap.ResponseCodeAuthenticationFailed, imap.ResponseCodeAuthorizationFailed, imap.ResponseCodeExpired:
			return &AuthError{Provider: "imap", Message: msg, Cause: err}
		case imap.ResponseCodeUnavailable, imap.ResponseCodeServerBug, imap.ResponseCodeLimit:
			return &TransientProviderError{Provider: "imap", Message: msg, Cause: err}
		}
		if msg == "login" && imapErr.Type == imap.StatusResponseTypeNo {
			return &AuthError{Provider: "imap", Message: msg, Cause: err}
		}
		return fmt.Errorf("imap %s: %w", msg, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return &TransientProviderError{Provider: "imap", Message: msg, Cause: err}
	}
	return fmt.Errorf("imap %s: %w", msg, err)
}

// logoutAndClose logs out then closes the connection.
func logoutAndClose(c *imapclient.Client) {
	if c == nil {
		return
	}
	if err := c.Logout().Wait(); err != nil {
		log.Printf("[imap] Logout failed: %v", err)
	}
	_ = c.Close()
}
