package server

import (
	"crypto/rand"
	"encoding/hex"
	"log"

	"github.com/jrsteele09/go-token-engine/clients"
	"github.com/jrsteele09/go-token-engine/internal/errors"
	"github.com/jrsteele09/go-token-engine/services"
	"github.com/jrsteele09/go-token-engine/signature"
)

const (
	// Development credentials seeded on first boot
	DevConfidentialClientID   = "dev-backend"
	DevConfidentialClientName = "Dev Backend"
	DevPublicClientID         = "dev-spa"
	DevPublicClientName       = "Dev Single Page App"
	DevServiceID              = "dev-worker"
	DevServiceName            = "Dev Worker"
)

// Seed registers development credentials so a fresh checkout can exercise
// every flow immediately. DEV only; real registries are managed out of band.
// Secrets are generated per boot and printed exactly once.
func (s *Server) Seed() error {
	if s.env != "DEV" {
		return nil
	}

	log.Printf("🔧 Seed: checking development credentials...")

	baseURL := s.config.GetBaseURL()

	secret, created, err := s.seedConfidentialClient(baseURL)
	if err != nil {
		return err
	}
	if err := s.seedPublicClient(baseURL); err != nil {
		return err
	}
	serviceKey, err := s.seedServicePrincipal()
	if err != nil {
		return err
	}

	if !created {
		log.Printf("✅ Seed: development credentials already present")
		return nil
	}

	log.Printf("✅ Seed complete")
	log.Printf("")
	log.Printf("🔐 OAuth2 Clients:")
	log.Printf("")
	log.Printf("   1️⃣  %s (%s)", DevConfidentialClientName, DevConfidentialClientID)
	log.Printf("       Flows:         authorization_code, client_credentials, refresh_token")
	log.Printf("       client_secret: %s", secret)
	log.Printf("       Redirect URI:  %s/callback", baseURL)
	log.Printf("")
	log.Printf("   2️⃣  %s (%s)", DevPublicClientName, DevPublicClientID)
	log.Printf("       Flow:          PKCE (public client, no secret)")
	log.Printf("       Redirect URI:  http://localhost:3000/callback")
	log.Printf("")
	log.Printf("🤖 Service Principal:")
	log.Printf("   %s (%s)", DevServiceName, DevServiceID)
	log.Printf("       Signing key:   %s", hex.EncodeToString(serviceKey))
	log.Printf("       ⚠️  SAVE THIS KEY - it will not be displayed again!")
	log.Printf("")
	log.Printf("🌐 Discovery Endpoint:")
	log.Printf("   %s%s", baseURL, RouteWellKnownOpenIDConfig)

	return nil
}

// seedConfidentialClient creates the dev backend client with a fresh secret.
// Reports created=false when it already exists so the banner is not reprinted.
func (s *Server) seedConfidentialClient(baseURL string) (secret string, created bool, err error) {
	if existing, getErr := s.clientRepo.Get(DevConfidentialClientID); getErr == nil && existing != nil {
		log.Printf("   Confidential client already exists: %s", DevConfidentialClientID)
		return "", false, nil
	}

	secret, err = signature.RandomToken(24)
	if err != nil {
		return "", false, errors.Wrapf(err, "[Server.Seed] generating client secret")
	}
	secretHash, err := clients.HashSecret(secret)
	if err != nil {
		return "", false, errors.Wrapf(err, "[Server.Seed] hashing client secret")
	}

	client := &clients.Client{
		ID:         DevConfidentialClientID,
		Name:       DevConfidentialClientName,
		Type:       clients.ClientTypeConfidential,
		SecretHash: secretHash,
		RedirectURIs: []string{
			baseURL + "/callback",
			"http://localhost:8080/callback",
		},
		Scopes: []string{"openid", "profile", "email"},
	}
	if err := s.clientRepo.Upsert(client); err != nil {
		return "", false, errors.Wrapf(err, "[Server.Seed] creating confidential client")
	}

	log.Printf("   ✅ Created confidential client: %s", DevConfidentialClientID)
	return secret, true, nil
}

// seedPublicClient creates the dev single page app client (PKCE, no secret).
func (s *Server) seedPublicClient(baseURL string) error {
	if existing, err := s.clientRepo.Get(DevPublicClientID); err == nil && existing != nil {
		log.Printf("   Public client already exists: %s", DevPublicClientID)
		return nil
	}

	client := &clients.Client{
		ID:   DevPublicClientID,
		Name: DevPublicClientName,
		Type: clients.ClientTypePublic,
		RedirectURIs: []string{
			baseURL + "/callback",
			"http://localhost:3000/callback",
		},
		Scopes: []string{"openid", "profile", "email"},
	}
	if err := s.clientRepo.Upsert(client); err != nil {
		return errors.Wrapf(err, "[Server.Seed] creating public client")
	}

	log.Printf("   ✅ Created public client: %s (public, PKCE)", DevPublicClientID)
	return nil
}

// seedServicePrincipal creates the dev worker with a random shared key.
func (s *Server) seedServicePrincipal() ([]byte, error) {
	if existing, err := s.serviceRepo.Get(DevServiceID); err == nil && existing != nil {
		log.Printf("   Service principal already exists: %s", DevServiceID)
		return nil, nil
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.Wrapf(err, "[Server.Seed] generating service key")
	}

	principal := &services.ServicePrincipal{
		ID:            DevServiceID,
		Name:          DevServiceName,
		Key:           key,
		AllowedScopes: []string{"api.read", "api.write"},
	}
	if err := s.serviceRepo.Upsert(principal); err != nil {
		return nil, errors.Wrapf(err, "[Server.Seed] creating service principal")
	}

	log.Printf("   ✅ Created service principal: %s", DevServiceID)
	return key, nil
}
