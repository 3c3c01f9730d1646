package server

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteHealthz, s.Healthz())

	// Discovery document is static and cacheable, so it also gets compression
	s.RegisterRouteHandler("GET "+RouteWellKnownOpenIDConfig,
		ChainMiddleware(s.WellKnownOpenIDConfig(), append(s.APIMiddleware(), s.CompressionMiddleware)...))

	// OAuth2 endpoints
	s.RegisterRouteHandler("GET "+RouteOAuth2Authorize, ChainMiddleware(s.Authorize(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteOAuth2Token, ChainMiddleware(s.Token(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteOAuth2Revoke, ChainMiddleware(s.Revoke(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteOAuth2Introspect, ChainMiddleware(s.Introspect(), s.APIMiddleware()...))

	// Protected: revokes every session of the bearer-authenticated principal
	s.RegisterRouteHandler("POST "+RouteOAuth2RevokeAll,
		ChainMiddleware(s.RevokeAll(), append(s.APIMiddleware(), s.RequireAuth())...))

	// HMAC-authenticated machine callers
	s.RegisterRouteHandler("POST "+RouteServiceToken, ChainMiddleware(s.ServiceToken(), s.APIMiddleware()...))
}
