// Package server is the HTTP surface of the token engine: the OAuth2
// endpoints, the HMAC-authenticated service token endpoint, and the
// middleware stack around them. All protocol logic lives in the auth, token
// and services packages; handlers only translate between HTTP and those
// engines.
package server

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-token-engine/auth"
	"github.com/jrsteele09/go-token-engine/clients"
	"github.com/jrsteele09/go-token-engine/grants"
	"github.com/jrsteele09/go-token-engine/internal/config"
	"github.com/jrsteele09/go-token-engine/services"
	"github.com/jrsteele09/go-token-engine/token"
	"github.com/jrsteele09/go-token-engine/token/denylist"
	"github.com/jrsteele09/go-token-engine/token/refresh"
)

// Deps bundles the storage implementations the server runs on. Everything is
// an interface; cmd/server wires the in-memory implementations and a real
// deployment swaps in persistent ones.
type Deps struct {
	Clients  clients.Repo
	Grants   grants.Repo
	Refresh  refresh.Repo
	Records  token.RecordRepo
	Services services.Repo
	Denylist denylist.Store
}

// PrincipalResolver reports which end user the authorize request is acting
// for. Empty means nobody is logged in and the request should bounce to the
// login page. Login itself lives outside this service.
type PrincipalResolver func(r *http.Request) (string, error)

type Server struct {
	env    string // Environment (e.g., "DEV", "production")
	mux    *http.ServeMux
	routes []string
	config config.Config
	logger zerolog.Logger

	issuer        *auth.Issuer
	manager       *token.Manager
	serviceIssuer *services.Issuer
	clientRepo    clients.Repo
	serviceRepo   services.Repo
	resolver      PrincipalResolver
}

// Option configures optional Server behavior
type Option func(*Server)

// WithLogger sets the structured logger for requests and security events
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithPrincipalResolver replaces how the authorize endpoint identifies the
// logged-in user. The default accepts one of this server's own bearer tokens.
func WithPrincipalResolver(resolver PrincipalResolver) Option {
	return func(s *Server) { s.resolver = resolver }
}

func New(cfg config.Config, deps Deps, options ...Option) (*Server, error) {
	secret := cfg.GetSigningSecret()
	if secret == "" {
		return nil, fmt.Errorf("[Server New] SIGNING_SECRET is not set; refusing to start without a signing key")
	}
	signer, err := token.NewHMACSigner(secret)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create signer: %w", err)
	}

	s := &Server{
		mux:         http.NewServeMux(),
		config:      cfg,
		env:         cfg.GetEnv(),
		logger:      zerolog.Nop(),
		clientRepo:  deps.Clients,
		serviceRepo: deps.Services,
	}
	for _, option := range options {
		option(s)
	}

	codec := token.NewCodec(signer, cfg.GetIssuer(), token.WithAudience(cfg.GetAudience()))

	managerOptions := []token.ManagerOption{
		token.WithTokenExpiry(cfg.GetDefaultAccessTokenExpiry(), cfg.GetDefaultIDTokenExpiry(), cfg.GetDefaultRefreshTokenExpiry()),
		token.WithRefreshTokenLength(cfg.GetRefreshTokenLength()),
		token.WithRecordRepo(deps.Records),
		token.WithServiceDirectory(services.NewDirectory(deps.Services)),
		token.WithLogger(s.logger),
	}
	if deps.Denylist != nil {
		managerOptions = append(managerOptions, token.WithDenylist(deps.Denylist))
	}
	s.manager = token.NewManager(codec, deps.Clients, deps.Grants, deps.Refresh, managerOptions...)

	s.issuer = auth.NewIssuer(deps.Clients, deps.Grants,
		auth.WithGrantTTL(cfg.GetAuthCodeTimeout()),
		auth.WithCodeLength(cfg.GetCodeGenerationLength()),
		auth.WithBaseScope(cfg.GetBaseScope()),
		auth.WithRequirePKCE(cfg.GetRequirePKCE()),
		auth.WithLogger(s.logger),
	)

	s.serviceIssuer = services.NewIssuer(deps.Services, s.manager,
		services.WithTimestampTolerance(cfg.GetSignatureTolerance()),
		services.WithLogger(s.logger),
	)

	if s.resolver == nil {
		s.resolver = s.bearerPrincipal
	}

	if err := s.Seed(); err != nil {
		return nil, fmt.Errorf("[Server New] failed to seed development credentials: %w", err)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}
