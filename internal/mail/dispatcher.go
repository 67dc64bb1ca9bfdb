// Package mail sends composed complaint emails through the Gmail REST API
// under an OAuth-delegated identity. The credential lifecycle is an explicit
// Valid/Expired state machine: an expired access token is exchanged via the
// provider's token endpoint before sending, and a failed refresh aborts the
// send entirely.
package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/civiclens/routing-server/internal/apperrors"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Credential is the ephemeral OAuth material for one dispatch. Never
// persisted here; ownership stays with the identity subsystem.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

type tokenState int

const (
	stateValid tokenState = iota
	stateExpired
)

// expirySkew treats tokens about to expire as already expired so a send
// does not race the deadline.
const expirySkew = 30 * time.Second

func (c Credential) state(now time.Time) tokenState {
	if c.AccessToken == "" {
		return stateExpired
	}
	if !c.ExpiresAt.IsZero() && !now.Add(expirySkew).Before(c.ExpiresAt) {
		return stateExpired
	}
	return stateValid
}

// Dispatcher sends raw messages through the mail transport.
type Dispatcher struct {
	client  *http.Client
	sendURL string
	oauth   *oauth2.Config
	logger  *zap.SugaredLogger
	now     func() time.Time
}

// NewDispatcher creates a Gmail dispatcher. clientID/clientSecret and
// tokenURL configure the refresh exchange.
func NewDispatcher(client *http.Client, sendURL, clientID, clientSecret, tokenURL string, logger *zap.SugaredLogger) *Dispatcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Dispatcher{
		client:  client,
		sendURL: sendURL,
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
		},
		logger: logger,
		now:    time.Now,
	}
}

// Send delivers one message. An expired credential is refreshed first; a
// failed refresh returns AuthExpiredError without attempting the send.
func (d *Dispatcher) Send(ctx context.Context, to, subject, body string, cred Credential) error {
	if to == "" {
		return apperrors.NewInvalidInput("to", "recipient address is required")
	}

	token := cred.AccessToken
	if cred.state(d.now()) == stateExpired {
		refreshed, err := d.refresh(ctx, cred)
		if err != nil {
			return &apperrors.AuthExpiredError{Err: err}
		}
		token = refreshed
	}

	return d.post(ctx, token, encodeMessage(to, subject, body))
}

// refresh exchanges the refresh token for a fresh access token. Never sends
// under a token known to be invalid.
func (d *Dispatcher) refresh(ctx context.Context, cred Credential) (string, error) {
	if cred.RefreshToken == "" {
		return "", errors.New("access token expired and no refresh token available")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, d.client)
	src := d.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("token refresh: %w", err)
	}
	d.logger.Debugw("Mail credential refreshed", "expires", tok.Expiry)
	return tok.AccessToken, nil
}

func (d *Dispatcher) post(ctx context.Context, token, raw string) error {
	payload, _ := json.Marshal(map[string]string{"raw": raw})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.sendURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return apperrors.NewUpstream("mail", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &apperrors.AuthExpiredError{Err: fmt.Errorf("mail transport rejected token: status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperrors.NewUpstream("mail", resp.StatusCode, fmt.Errorf("%s", snippet))
	}
	return nil
}

// encodeMessage builds the minimal header block the transport expects and
// base64url-encodes it without padding.
func encodeMessage(to, subject, body string) string {
	raw := fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s", to, subject, body)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}
