package shopify

import (
	"context"
	"errors"
)

const (
	tokenExchangeGrantType = "urn:ietf:params:oauth:grant-type:token-exchange"
	idTokenType            = "urn:ietf:params:oauth:token-type:id_token"
	offlineTokenType       = "urn:shopify:params:oauth:token-type:offline-access-token"
)

// OfflineToken is a long-lived Admin API access token for one shop.
type OfflineToken struct {
	AccessToken string `json:"access_token"`
	Scope       string `json:"scope"`
}

type tokenExchangeRequest struct {
	ClientID           string `json:"client_id"`
	ClientSecret       string `json:"client_secret"`
	GrantType          string `json:"grant_type"`
	SubjectToken       string `json:"subject_token"`
	SubjectTokenType   string `json:"subject_token_type"`
	RequestedTokenType string `json:"requested_token_type"`
}

// ExchangeToken trades an embedded-app session token for an offline access token.
func (c *Client) ExchangeToken(ctx context.Context, shop, sessionToken string) (*OfflineToken, error) {
	var token OfflineToken
	err := c.postJSON(ctx, c.origin(shop)+"/admin/oauth/access_token", nil,
		tokenExchangeRequest{
			ClientID:           c.apiKey,
			ClientSecret:       c.apiSecret,
			GrantType:          tokenExchangeGrantType,
			SubjectToken:       sessionToken,
			SubjectTokenType:   idTokenType,
			RequestedTokenType: offlineTokenType,
		},
		&token,
	)
	if err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, errors.New("shopify: token exchange returned no access token")
	}
	return &token, nil
}
