package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ExchangeCode swaps an OAuth authorization code for a bearer access token.
// Exactly one form-encoded POST is issued; there is no retry.
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", newError(KindValidation, "authorization code is required")
	}
	if c.creds.ClientID == "" || c.creds.ClientSecret == "" || c.creds.RedirectURI == "" {
		return "", newError(KindConfiguration, "client id, client secret and redirect uri must all be configured")
	}

	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", c.creds.ClientID)
	form.Set("client_secret", c.creds.ClientSecret)
	form.Set("redirect_uri", c.creds.RedirectURI)
	form.Set("grant_type", "authorization_code")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", wrapError(KindUpstream, "create token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", wrapError(KindUpstream, "token exchange request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", wrapError(KindUpstream, "read token response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", upstreamError(resp.StatusCode, body, "token exchange failed")
	}

	var tr struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", wrapError(KindResponseFormat, "decode token response", err)
	}
	if tr.AccessToken == "" {
		return "", newError(KindResponseFormat, "token response missing access_token")
	}

	c.logger.Debug("authorization code exchanged")

	return tr.AccessToken, nil
}
