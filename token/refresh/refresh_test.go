package refresh_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-token-engine/signature"
	"github.com/jrsteele09/go-token-engine/token/refresh"
	refreshrepofake "github.com/jrsteele09/go-token-engine/token/refresh/repofake"
)

var mintTime = time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)

func baseParams() refresh.MintParams {
	return refresh.MintParams{
		Kind:        refresh.KindUser,
		ClientID:    "test-client-1",
		PrincipalID: "user-1",
		Scope:       []string{"openid", "profile"},
		TTL:         30 * 24 * time.Hour,
		Now:         mintTime,
	}
}

// TestMint_SecretIsReturnedOnceAndOnlyHashStored checks the stored record
// never carries the raw secret.
func TestMint_SecretIsReturnedOnceAndOnlyHashStored(t *testing.T) {
	secret, rt, err := refresh.Mint(baseParams())
	require.NoError(t, err)

	require.NotEmpty(t, secret)
	require.NotContains(t, rt.TokenHash, secret)
	require.Equal(t, signature.HashToken(secret), rt.TokenHash)
}

// TestMint_DefaultTokenLength expects 32 random bytes, hex encoded.
func TestMint_DefaultTokenLength(t *testing.T) {
	secret, _, err := refresh.Mint(baseParams())
	require.NoError(t, err)
	require.Len(t, secret, 64)

	p := baseParams()
	p.TokenLength = 48
	secret, _, err = refresh.Mint(p)
	require.NoError(t, err)
	require.Len(t, secret, 96)
}

// TestMint_NewFamilyDefaults verifies a fresh chain gets generated
// identifiers and a horizon equal to its own expiry.
func TestMint_NewFamilyDefaults(t *testing.T) {
	p := baseParams()
	_, rt, err := refresh.Mint(p)
	require.NoError(t, err)

	require.NotEmpty(t, rt.ID)
	require.NotEmpty(t, rt.FamilyID)
	require.Equal(t, mintTime, rt.IssuedAt)
	require.Equal(t, mintTime.Add(p.TTL), rt.ExpiresAt)
	require.Equal(t, rt.ExpiresAt, rt.FamilyExpiresAt)
	require.False(t, rt.Used)
	require.False(t, rt.Revoked)
}

// TestMint_ContinuedFamilyKeepsIdentifiers verifies rotation reuses the
// supplied record and family ids.
func TestMint_ContinuedFamilyKeepsIdentifiers(t *testing.T) {
	p := baseParams()
	p.ID = "successor-id"
	p.FamilyID = "family-1"
	p.FamilyExpiresAt = mintTime.Add(90 * 24 * time.Hour)

	_, rt, err := refresh.Mint(p)
	require.NoError(t, err)
	require.Equal(t, "successor-id", rt.ID)
	require.Equal(t, "family-1", rt.FamilyID)
	require.Equal(t, p.FamilyExpiresAt, rt.FamilyExpiresAt)
}

// TestMint_ExpiryCappedAtFamilyHorizon checks a rotation near the end of a
// chain cannot outlive the chain.
func TestMint_ExpiryCappedAtFamilyHorizon(t *testing.T) {
	p := baseParams()
	p.FamilyID = "family-1"
	p.FamilyExpiresAt = mintTime.Add(time.Hour)

	_, rt, err := refresh.Mint(p)
	require.NoError(t, err)
	require.Equal(t, p.FamilyExpiresAt, rt.ExpiresAt)
}

// TestMint_SecretsAreUnique is a sanity check on the random source.
func TestMint_SecretsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 32; i++ {
		secret, _, err := refresh.Mint(baseParams())
		require.NoError(t, err)
		require.False(t, seen[secret])
		seen[secret] = true
	}
}

func storeToken(t *testing.T, repo refresh.Repo, p refresh.MintParams) (string, *refresh.StoredRefreshToken) {
	t.Helper()

	secret, rt, err := refresh.Mint(p)
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(rt))
	return secret, rt
}

// TestRepo_GetByHash verifies lookup is by token hash, never by raw secret.
func TestRepo_GetByHash(t *testing.T) {
	repo := refreshrepofake.NewFakeRefreshTokenRepo()
	secret, rt := storeToken(t, repo, baseParams())

	got, err := repo.GetByHash(signature.HashToken(secret))
	require.NoError(t, err)
	require.Equal(t, rt.ID, got.ID)

	_, err = repo.GetByHash(secret)
	require.ErrorIs(t, err, refresh.ErrNotFound)
}

// TestRepo_MarkUsedClaimsOnce verifies the single-use gate: the first caller
// wins and later presenters of the same token observe ErrUsed.
func TestRepo_MarkUsedClaimsOnce(t *testing.T) {
	repo := refreshrepofake.NewFakeRefreshTokenRepo()
	_, rt := storeToken(t, repo, baseParams())

	usedAt := mintTime.Add(time.Minute)
	require.NoError(t, repo.MarkUsed(rt.ID, "successor-id", usedAt))

	got, err := repo.GetByHash(rt.TokenHash)
	require.NoError(t, err)
	require.True(t, got.Used)
	require.Equal(t, usedAt, got.UsedAt)
	require.Equal(t, "successor-id", got.ReplacedByID)

	err = repo.MarkUsed(rt.ID, "another-successor", usedAt.Add(time.Second))
	require.ErrorIs(t, err, refresh.ErrUsed)

	// The losing call must not overwrite the winner's link.
	got, err = repo.GetByHash(rt.TokenHash)
	require.NoError(t, err)
	require.Equal(t, "successor-id", got.ReplacedByID)
}

// TestRepo_MarkUsedOnRevokedToken verifies revocation is reported ahead of
// the used state.
func TestRepo_MarkUsedOnRevokedToken(t *testing.T) {
	repo := refreshrepofake.NewFakeRefreshTokenRepo()
	_, rt := storeToken(t, repo, baseParams())

	require.NoError(t, repo.Revoke(rt.ID, mintTime.Add(time.Minute)))
	err := repo.MarkUsed(rt.ID, "successor-id", mintTime.Add(2*time.Minute))
	require.ErrorIs(t, err, refresh.ErrRevoked)
}

// TestRepo_MarkUsedUnknownID verifies missing records surface ErrNotFound.
func TestRepo_MarkUsedUnknownID(t *testing.T) {
	repo := refreshrepofake.NewFakeRefreshTokenRepo()
	err := repo.MarkUsed("no-such-id", "successor-id", mintTime)
	require.ErrorIs(t, err, refresh.ErrNotFound)
}

// TestRepo_RevokeFamily verifies every link of a rotation chain is revoked
// and returned, while other families stay live.
func TestRepo_RevokeFamily(t *testing.T) {
	repo := refreshrepofake.NewFakeRefreshTokenRepo()

	family := baseParams()
	family.FamilyID = "family-1"
	family.FamilyExpiresAt = mintTime.Add(90 * 24 * time.Hour)
	_, first := storeToken(t, repo, family)
	_, second := storeToken(t, repo, family)

	other := baseParams()
	other.PrincipalID = "user-2"
	_, bystander := storeToken(t, repo, other)

	revokedAt := mintTime.Add(time.Hour)
	revoked, err := repo.RevokeFamily("family-1", revokedAt)
	require.NoError(t, err)
	require.Len(t, revoked, 2)
	for _, rt := range revoked {
		require.True(t, rt.Revoked)
		require.Equal(t, revokedAt, rt.RevokedAt)
	}

	ids := []string{revoked[0].ID, revoked[1].ID}
	require.ElementsMatch(t, []string{first.ID, second.ID}, ids)

	got, err := repo.GetByHash(bystander.TokenHash)
	require.NoError(t, err)
	require.False(t, got.Revoked)
}

// TestRepo_RevokeAllForPrincipal verifies a principal wipe covers every
// family the principal holds, regardless of client.
func TestRepo_RevokeAllForPrincipal(t *testing.T) {
	repo := refreshrepofake.NewFakeRefreshTokenRepo()

	web := baseParams()
	_, _ = storeToken(t, repo, web)

	mobile := baseParams()
	mobile.ClientID = "mobile-client"
	_, _ = storeToken(t, repo, mobile)

	other := baseParams()
	other.PrincipalID = "user-2"
	_, bystander := storeToken(t, repo, other)

	revoked, err := repo.RevokeAllForPrincipal("user-1", mintTime.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, revoked, 2)

	got, err := repo.GetByHash(bystander.TokenHash)
	require.NoError(t, err)
	require.False(t, got.Revoked)
}

// TestRepo_DeleteExpired verifies the sweeper drops expired records and
// their hash index entries.
func TestRepo_DeleteExpired(t *testing.T) {
	repo := refreshrepofake.NewFakeRefreshTokenRepo()

	short := baseParams()
	short.TTL = time.Hour
	_, expired := storeToken(t, repo, short)
	_, live := storeToken(t, repo, baseParams())

	removed, err := repo.DeleteExpired(mintTime.Add(2 * time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = repo.GetByHash(expired.TokenHash)
	require.ErrorIs(t, err, refresh.ErrNotFound)
	_, err = repo.GetByHash(live.TokenHash)
	require.NoError(t, err)
}

// TestRepo_ListPaginates verifies issue-time ordering and offset handling.
func TestRepo_ListPaginates(t *testing.T) {
	repo := refreshrepofake.NewFakeRefreshTokenRepo()

	for i := 0; i < 3; i++ {
		p := baseParams()
		p.Now = mintTime.Add(time.Duration(i) * time.Minute)
		_, _ = storeToken(t, repo, p)
	}

	page, err := repo.List(0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.True(t, page[0].IssuedAt.Before(page[1].IssuedAt))

	rest, err := repo.List(2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)

	empty, err := repo.List(10, 2)
	require.NoError(t, err)
	require.Empty(t, empty)
}

// TestStoredRefreshToken_Expired checks the boundary: a token is live at its
// exact expiry instant.
func TestStoredRefreshToken_Expired(t *testing.T) {
	rt := &refresh.StoredRefreshToken{ExpiresAt: mintTime.Add(time.Hour)}

	require.False(t, rt.Expired(mintTime))
	require.False(t, rt.Expired(mintTime.Add(time.Hour)))
	require.True(t, rt.Expired(mintTime.Add(time.Hour+time.Second)))
}
