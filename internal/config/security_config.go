package config

import "time"

type SecurityConfig interface {
	GetRequirePKCE() bool
	GetSignatureTolerance() time.Duration
	GetDenylistSweepInterval() time.Duration
	GetBcryptCost() int
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetRequirePKCE forces PKCE for confidential clients too.
// Public clients always require it.
func (Security) GetRequirePKCE() bool {
	return false
}

// GetSignatureTolerance bounds the age of signed service requests, in
// both directions.
func (Security) GetSignatureTolerance() time.Duration {
	return 5 * time.Minute
}

func (Security) GetDenylistSweepInterval() time.Duration {
	return 5 * time.Minute
}

func (Security) GetBcryptCost() int {
	return 10
}
