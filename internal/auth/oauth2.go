package auth

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/loykin/pushprobe/internal/common"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

var (
	tlsMu     sync.RWMutex
	tlsConfig *tls.Config
)

// SetTLSConfig sets the TLS configuration used when talking to token endpoints.
func SetTLSConfig(cfg *tls.Config) {
	tlsMu.Lock()
	tlsConfig = cfg
	tlsMu.Unlock()
}

func httpClient() *http.Client {
	tlsMu.RLock()
	cfg := tlsConfig
	tlsMu.RUnlock()
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if cfg != nil {
		tr.TLSClientConfig = cfg.Clone()
	}
	return &http.Client{Transport: tr, Timeout: 15 * time.Second}
}

// ClientCredentialsConfig is the OAuth2 client credentials grant.
type ClientCredentialsConfig struct {
	Header       string   `mapstructure:"header"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	TokenURL     string   `mapstructure:"token_url"`
	Scopes       []string `mapstructure:"scopes"`
}

// Method validates the config and returns a Method that fetches a token on
// first use and reuses it until it expires.
func (c ClientCredentialsConfig) Method() (Method, error) {
	id := strings.TrimSpace(c.ClientID)
	secret := strings.TrimSpace(c.ClientSecret)
	tokenURL := strings.TrimSpace(c.TokenURL)
	if tokenURL == "" {
		return nil, errors.New("oauth2: token_url is required")
	}
	if id == "" || secret == "" {
		return nil, errors.New("oauth2: client_id and client_secret are required")
	}
	common.GetGlobalMasker().AddLiteral("client_secret", secret)
	return &clientCredentialsMethod{
		header: headerOrDefault(c.Header),
		cfg: &clientcredentials.Config{
			ClientID:     id,
			ClientSecret: secret,
			TokenURL:     tokenURL,
			Scopes:       c.Scopes,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
	}, nil
}

type clientCredentialsMethod struct {
	header string
	cfg    *clientcredentials.Config

	mu  sync.Mutex
	tok *oauth2.Token
}

func (m *clientCredentialsMethod) Acquire(ctx context.Context) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tok == nil || !m.tok.Valid() {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient())
		tok, err := m.cfg.Token(ctx)
		if err != nil {
			return "", "", err
		}
		m.tok = tok
	}
	if strings.TrimSpace(m.tok.AccessToken) == "" {
		return "", "", errors.New("oauth2: received empty access token")
	}
	typ := strings.TrimSpace(m.tok.TokenType)
	if typ == "" || strings.EqualFold(typ, "bearer") {
		typ = "Bearer"
	}
	return m.header, typ + " " + m.tok.AccessToken, nil
}
