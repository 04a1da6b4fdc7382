package lifecycle

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// OAuth1Endpoint carries the three URLs and consumer credentials an
// OAuth 1.0a provider (evernote, the only source in this pack requiring
// RequiresLegacyOAuth1a) needs for the three-leg handshake.
type OAuth1Endpoint struct {
	RequestTokenURL string
	AuthorizeURL    string
	AccessTokenURL  string
	ConsumerKey     string
	ConsumerSecret  string
	CallbackURL     string
}

// requestTemporaryToken is leg one: exchange the consumer key/secret for
// a temporary (request) token and secret, and build the provider's
// authorize URL the user's browser is redirected to.
func requestTemporaryToken(ctx context.Context, ep OAuth1Endpoint) (token, secret, authorizeURL string, err error) {
	params := map[string]string{
		"oauth_callback": ep.CallbackURL,
	}
	values, err := signedRequest(http.MethodPost, ep.RequestTokenURL, ep.ConsumerKey, ep.ConsumerSecret, "", params)
	if err != nil {
		return "", "", "", fmt.Errorf("oauth1: request token: %w", err)
	}

	resp, err := doOAuth1Form(ctx, ep.RequestTokenURL, values)
	if err != nil {
		return "", "", "", err
	}

	token = resp.Get("oauth_token")
	secret = resp.Get("oauth_token_secret")
	if token == "" || secret == "" {
		return "", "", "", fmt.Errorf("oauth1: request token response missing oauth_token/oauth_token_secret")
	}

	return token, secret, ep.AuthorizeURL + "?oauth_token=" + url.QueryEscape(token), nil
}

// exchangeAccessToken is leg three: after the user authorizes and the
// provider redirects back with oauth_verifier, exchange the temporary
// token + verifier for a permanent access token and secret.
func exchangeAccessToken(ctx context.Context, ep OAuth1Endpoint, tempToken, tempSecret, verifier string) (accessToken, accessSecret string, err error) {
	params := map[string]string{
		"oauth_token":    tempToken,
		"oauth_verifier": verifier,
	}
	values, err := signedRequest(http.MethodPost, ep.AccessTokenURL, ep.ConsumerKey, ep.ConsumerSecret, tempSecret, params)
	if err != nil {
		return "", "", fmt.Errorf("oauth1: access token: %w", err)
	}

	resp, err := doOAuth1Form(ctx, ep.AccessTokenURL, values)
	if err != nil {
		return "", "", err
	}

	accessToken = resp.Get("oauth_token")
	accessSecret = resp.Get("oauth_token_secret")
	if accessToken == "" {
		return "", "", fmt.Errorf("oauth1: access token response missing oauth_token")
	}
	return accessToken, accessSecret, nil
}

func doOAuth1Form(ctx context.Context, endpoint string, values url.Values) (url.Values, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oauth1: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("oauth1: read response from %s: %w", endpoint, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("oauth1: %s returned status %d: %s", endpoint, resp.StatusCode, string(body))
	}

	return url.ParseQuery(string(body))
}

// signedRequest builds the HMAC-SHA1-signed oauth_* form values for one
// leg of the handshake, per RFC 5849 §3.4.
func signedRequest(method, endpoint, consumerKey, consumerSecret, tokenSecret string, extra map[string]string) (url.Values, error) {
	nonce, err := randomNonce()
	if err != nil {
		return nil, err
	}

	params := map[string]string{
		"oauth_consumer_key":     consumerKey,
		"oauth_nonce":            nonce,
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(time.Now().UTC().Unix(), 10),
		"oauth_version":          "1.0",
	}
	for k, v := range extra {
		params[k] = v
	}

	sig := sign(method, endpoint, params, consumerSecret, tokenSecret)
	params["oauth_signature"] = sig

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	return values, nil
}

func sign(method, endpoint string, params map[string]string, consumerSecret, tokenSecret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = url.QueryEscape(k) + "=" + url.QueryEscape(params[k])
	}

	baseString := strings.ToUpper(method) + "&" + url.QueryEscape(endpoint) + "&" + url.QueryEscape(strings.Join(pairs, "&"))
	signingKey := url.QueryEscape(consumerSecret) + "&" + url.QueryEscape(tokenSecret)

	mac := hmac.New(sha1.New, []byte(signingKey))
	mac.Write([]byte(baseString))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func randomNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("oauth1: generate nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}
