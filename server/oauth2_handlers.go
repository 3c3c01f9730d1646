package server

import (
	"encoding/json"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-token-engine/auth"
	"github.com/jrsteele09/go-token-engine/internal/errors"
	"github.com/jrsteele09/go-token-engine/oauth2"
)

// WellKnownOpenIDConfig serves the OIDC discovery document
func (s *Server) WellKnownOpenIDConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		baseURL := s.config.GetBaseURL()

		resp := map[string]any{
			"issuer":                 s.config.GetIssuer(),
			"authorization_endpoint": baseURL + RouteOAuth2Authorize,
			"token_endpoint":         baseURL + RouteOAuth2Token,
			"revocation_endpoint":    baseURL + RouteOAuth2Revoke,
			"introspection_endpoint": baseURL + RouteOAuth2Introspect,

			"response_types_supported": []string{"code"},
			"response_modes_supported": []string{"query", "fragment", "form_post"},
			"subject_types_supported":  []string{"public"},

			// Tokens are HMAC signed, so there is no public key set to publish.
			"id_token_signing_alg_values_supported": []string{"HS256"},

			"grant_types_supported": []string{
				"authorization_code",
				"refresh_token",
				"client_credentials",
			},

			"token_endpoint_auth_methods_supported": []string{
				"client_secret_basic",
				"client_secret_post",
				"none", // public clients authenticate with PKCE instead
			},

			"code_challenge_methods_supported": []string{"S256"},
			"scopes_supported":                 []string{"openid", "profile", "email"},
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "public, max-age=3600") // Cache for 1 hour
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// Authorize handles the OAuth2 authorization endpoint
func (s *Server) Authorize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := oauth2.ParseAuthorizationRequest(r.URL.Query())

		principalID, err := s.resolver(r)
		if err != nil {
			s.logger.Error().Err(err).Str("request_id", requestID(r.Context())).Msg("principal resolution failed")
			writeOAuthError(w, oauth2.NewError(oauth2.ErrServerError, "could not resolve login session"))
			return
		}

		authorization, err := s.issuer.Authorize(&req, principalID, time.Now())
		if err != nil {
			s.authorizeError(w, r, &req, err)
			return
		}

		params := url.Values{}
		params.Set("code", authorization.Code)
		if authorization.State != "" {
			params.Set("state", authorization.State)
		}
		s.redirectWithParams(w, r, authorization.RedirectURI, req.ResponseMode, params)
	}
}

// authorizeError routes an authorization failure to the right surface:
// pre-validation errors go straight to the caller, post-validation errors go
// back to the client on its redirect URI, and an unauthenticated principal is
// sent to the login page with the original request preserved.
func (s *Server) authorizeError(w http.ResponseWriter, r *http.Request, req *oauth2.AuthorizationRequest, err error) {
	var redirectErr *auth.RedirectError
	var oauthErr *oauth2.Error

	switch {
	case errors.As(err, &redirectErr):
		params := url.Values{}
		params.Set("error", string(redirectErr.Err.Code))
		if redirectErr.Err.Description != "" {
			params.Set("error_description", redirectErr.Err.Description)
		}
		if redirectErr.State != "" {
			params.Set("state", redirectErr.State)
		}
		s.redirectWithParams(w, r, redirectErr.RedirectURI, req.ResponseMode, params)

	case errors.Is(err, errors.ErrLoginRequired):
		s.redirectToLogin(w, r)

	case errors.As(err, &oauthErr):
		writeOAuthError(w, oauthErr)

	default:
		s.logger.Error().Err(err).Str("request_id", requestID(r.Context())).Msg("authorization failed")
		writeOAuthError(w, oauth2.NewError(oauth2.ErrServerError, "authorization failed"))
	}
}

// redirectToLogin bounces the browser to the login UI with the original
// authorize URL in a continue parameter so login can resume the flow.
func (s *Server) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	loginURL := s.config.GetLoginURL()
	separator := "?"
	if strings.Contains(loginURL, "?") {
		separator = "&"
	}
	http.Redirect(w, r, loginURL+separator+"continue="+url.QueryEscape(r.URL.String()), http.StatusSeeOther)
}

var formPostTemplate = template.Must(template.New("form_post").Parse(`<!DOCTYPE html>
<html>
<head><title>Submitting...</title></head>
<body onload="document.forms[0].submit()">
<form method="post" action="{{.Action}}">
{{- range $name, $values := .Params}}{{range $values}}
<input type="hidden" name="{{$name}}" value="{{.}}">
{{- end}}{{end}}
<noscript><button type="submit">Continue</button></noscript>
</form>
</body>
</html>
`))

type formPostData struct {
	Action string
	Params url.Values
}

// redirectWithParams delivers parameters to the client's redirect URI using
// the requested response mode (query, fragment or form_post).
func (s *Server) redirectWithParams(w http.ResponseWriter, r *http.Request, callbackURI string, responseMode oauth2.ResponseModeType, params url.Values) {
	u, err := url.Parse(callbackURI)
	if err != nil {
		// The issuer already validated this URI, so a parse failure is a bug.
		s.logger.Error().Err(err).Str("redirect_uri", callbackURI).Msg("validated redirect URI failed to parse")
		writeOAuthError(w, oauth2.NewError(oauth2.ErrServerError, "invalid redirect URI"))
		return
	}

	switch responseMode {
	case oauth2.FragmentResponseMode:
		// Appended by hand: url.URL would re-escape an already encoded fragment.
		http.Redirect(w, r, u.String()+"#"+params.Encode(), http.StatusSeeOther)

	case oauth2.FormPostResponseMode:
		w.Header().Set("Content-Type", contentTypeHTML)
		w.Header().Set("Cache-Control", "no-store")
		// The status is already committed, so a render failure can only be logged.
		if err := formPostTemplate.Execute(w, formPostData{Action: u.String(), Params: params}); err != nil {
			s.logger.Error().Err(err).Str("request_id", requestID(r.Context())).Msg("form_post response failed to render")
		}

	default: // query is the default response mode for the code flow
		q := u.Query()
		for key := range params {
			q.Set(key, params.Get(key))
		}
		u.RawQuery = q.Encode()
		http.Redirect(w, r, u.String(), http.StatusSeeOther)
	}
}

// Token handles the OAuth2 token endpoint for all supported grant types.
func (s *Server) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenReq, oauthErr := s.parseTokenRequest(r)
		if oauthErr != nil {
			writeOAuthError(w, oauthErr)
			return
		}

		response, err := s.manager.Exchange(r.Context(), tokenReq, time.Now())
		if err != nil {
			s.writeExchangeError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "no-store") // Tokens must never be cached
		w.Header().Set("Pragma", "no-cache")
		_ = json.NewEncoder(w).Encode(response)
	}
}

// parseTokenRequest accepts both encodings the endpoint supports: form
// bodies per RFC 6749 and JSON documents for backend callers that prefer
// them. Basic auth credentials override any in the body per RFC 6749 §2.3.1.
func (s *Server) parseTokenRequest(r *http.Request) (*oauth2.TokenRequest, *oauth2.Error) {
	var tokenReq *oauth2.TokenRequest
	var err error

	if isJSONRequest(r) {
		tokenReq, err = oauth2.ParseTokenRequestJSON(r.Body)
	} else {
		if formErr := r.ParseForm(); formErr != nil {
			return nil, oauth2.NewError(oauth2.ErrInvalidRequest, "failed to parse form body")
		}
		tokenReq, err = oauth2.ParseTokenRequest(r.PostForm)
	}
	if err != nil {
		return nil, asOAuthError(err)
	}

	if id, secret, ok := r.BasicAuth(); ok {
		tokenReq.ClientID = id
		tokenReq.ClientSecret = secret
	}
	return tokenReq, nil
}

func isJSONRequest(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// asOAuthError extracts the protocol error or downgrades anything else to
// invalid_request.
func asOAuthError(err error) *oauth2.Error {
	var oauthErr *oauth2.Error
	if errors.As(err, &oauthErr) {
		return oauthErr
	}
	return oauth2.NewError(oauth2.ErrInvalidRequest, "%s", err.Error())
}

func (s *Server) writeExchangeError(w http.ResponseWriter, r *http.Request, err error) {
	var oauthErr *oauth2.Error
	if !errors.As(err, &oauthErr) {
		s.logger.Error().Err(err).Str("request_id", requestID(r.Context())).Msg("token exchange failed")
		oauthErr = oauth2.NewError(oauth2.ErrServerError, "token exchange failed")
	}
	if oauthErr.Code == oauth2.ErrInvalidClient {
		w.Header().Set("WWW-Authenticate", `Basic realm="oauth2"`)
	}
	writeOAuthError(w, oauthErr)
}

// Revoke handles RFC 7009 token revocation. The response body never reveals
// whether the presented token existed, so revoking garbage still succeeds.
func (s *Server) Revoke() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeOAuthError(w, oauth2.NewError(oauth2.ErrInvalidRequest, "failed to parse form body"))
			return
		}
		req, err := oauth2.ParseRevocationRequest(r.PostForm)
		if err != nil {
			writeOAuthError(w, asOAuthError(err))
			return
		}
		if id, secret, ok := r.BasicAuth(); ok {
			req.ClientID = id
			req.ClientSecret = secret
		}

		if err := s.manager.Revoke(r.Context(), req, time.Now()); err != nil {
			s.logger.Error().Err(err).Str("request_id", requestID(r.Context())).Msg("revocation failed")
			writeOAuthError(w, oauth2.NewError(oauth2.ErrServerError, "revocation failed"))
			return
		}

		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// Introspect handles RFC 7662 token introspection. Only authenticated
// confidential clients may ask, otherwise the endpoint would hand anyone an
// oracle for probing stolen tokens.
func (s *Server) Introspect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeOAuthError(w, oauth2.NewError(oauth2.ErrInvalidRequest, "failed to parse form body"))
			return
		}
		req, err := oauth2.ParseIntrospectionRequest(r.PostForm)
		if err != nil {
			writeOAuthError(w, asOAuthError(err))
			return
		}
		if id, secret, ok := r.BasicAuth(); ok {
			req.ClientID = id
			req.ClientSecret = secret
		}

		if oauthErr := s.authenticateConfidentialClient(req.ClientID, req.ClientSecret); oauthErr != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="oauth2"`)
			writeOAuthError(w, oauthErr)
			return
		}

		introspection, err := s.manager.Introspect(r.Context(), req, time.Now())
		if err != nil {
			s.logger.Error().Err(err).Str("request_id", requestID(r.Context())).Msg("introspection failed")
			writeOAuthError(w, oauth2.NewError(oauth2.ErrServerError, "introspection failed"))
			return
		}
		writeJSON(w, http.StatusOK, introspection)
	}
}

// authenticateConfidentialClient guards endpoints only trusted backends may
// call. Public clients cannot satisfy it because they hold no secret.
func (s *Server) authenticateConfidentialClient(clientID, clientSecret string) *oauth2.Error {
	if clientID == "" || clientSecret == "" {
		return oauth2.NewError(oauth2.ErrInvalidClient, "client authentication required")
	}
	client, err := s.clientRepo.Get(clientID)
	if err != nil {
		return oauth2.NewError(oauth2.ErrInvalidClient, "client authentication failed")
	}
	if client.Disabled || client.CheckSecret(clientSecret) != nil {
		return oauth2.NewError(oauth2.ErrInvalidClient, "client authentication failed")
	}
	return nil
}

// RevokeAll ends every session of the authenticated principal: all refresh
// families die and outstanding access tokens are denylisted.
func (s *Server) RevokeAll() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principalID, ok := r.Context().Value(ContextKeyPrincipalID).(string)
		if !ok || principalID == "" {
			writeJSONError(w, "invalid_token", "no authenticated principal", http.StatusUnauthorized)
			return
		}

		revoked, err := s.manager.RevokeAllForPrincipal(r.Context(), principalID, time.Now())
		if err != nil {
			s.logger.Error().Err(err).Str("request_id", requestID(r.Context())).Msg("revoke-all failed")
			writeOAuthError(w, oauth2.NewError(oauth2.ErrServerError, "revocation failed"))
			return
		}

		s.logger.Info().
			Str("principal_id", principalID).
			Int("refresh_tokens_revoked", revoked).
			Msg("principal revoked all sessions")
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "revoked_sessions": revoked})
	}
}
