package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// AuthorizeFeed negotiates the feed-authorization handshake: it presents the
// caller's bearer token and returns the one-time upstream socket URL.
func (c *Client) AuthorizeFeed(ctx context.Context, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", newError(KindValidation, "bearer token is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+feedAuthPath, nil)
	if err != nil {
		return "", wrapError(KindUpstream, "create feed authorization request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", wrapError(KindUpstream, "feed authorization request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", wrapError(KindUpstream, "read feed authorization response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", upstreamError(resp.StatusCode, body, "feed authorization failed")
	}

	var fr struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &fr); err != nil {
		return "", wrapError(KindUpstream, "decode feed authorization response", err)
	}

	socketURL := socketURLFromData(fr.Data)
	if socketURL == "" {
		return "", upstreamError(resp.StatusCode, body, "feed authorization response missing socket url")
	}

	return socketURL, nil
}

// socketURLFromData extracts the socket URL from the response's data field.
// The broker serves either a bare string or an object carrying the
// authorized redirect URI.
func socketURLFromData(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var obj struct {
		AuthorizedRedirectURI string `json:"authorizedRedirectUri"`
		AuthorizedRedirect    string `json:"authorized_redirect_uri"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.AuthorizedRedirectURI != "" {
			return obj.AuthorizedRedirectURI
		}
		return obj.AuthorizedRedirect
	}

	return ""
}
