package config

import (
	"github.com/airweave-core/airweave-core/internal/lifecycle"
	"github.com/airweave-core/airweave-core/internal/token"
)

// OAuthEndpointResolver adapts Config.OAuthEndpoints into a
// token.EndpointResolver.
type OAuthEndpointResolver struct {
	endpoints map[string]OAuthEndpointConfig
}

// NewOAuthEndpointResolver wraps cfg's OAuth2 endpoints for the token
// Manager to resolve by source short name.
func NewOAuthEndpointResolver(endpoints map[string]OAuthEndpointConfig) *OAuthEndpointResolver {
	return &OAuthEndpointResolver{endpoints: endpoints}
}

func (r *OAuthEndpointResolver) Endpoint(shortName string) (token.Endpoint, bool) {
	e, ok := r.endpoints[shortName]
	if !ok {
		return token.Endpoint{}, false
	}
	return token.Endpoint{
		ClientID:     e.ClientID,
		ClientSecret: e.ClientSecret,
		TokenURL:     e.TokenURL,
		AuthURL:      e.AuthURL,
		Scopes:       e.Scopes,
	}, true
}

// OAuth1EndpointResolver adapts Config.OAuth1Endpoints into a
// lifecycle.OAuth1Endpoints.
type OAuth1EndpointResolver struct {
	endpoints map[string]OAuth1EndpointConfig
}

func NewOAuth1EndpointResolver(endpoints map[string]OAuth1EndpointConfig) *OAuth1EndpointResolver {
	return &OAuth1EndpointResolver{endpoints: endpoints}
}

func (r *OAuth1EndpointResolver) Endpoint(shortName string) (lifecycle.OAuth1Endpoint, bool) {
	e, ok := r.endpoints[shortName]
	if !ok {
		return lifecycle.OAuth1Endpoint{}, false
	}
	return lifecycle.OAuth1Endpoint{
		RequestTokenURL: e.RequestTokenURL,
		AuthorizeURL:    e.AuthorizeURL,
		AccessTokenURL:  e.AccessTokenURL,
		ConsumerKey:     e.ConsumerKey,
		ConsumerSecret:  e.ConsumerSecret,
		CallbackURL:     e.CallbackURL,
	}, true
}
