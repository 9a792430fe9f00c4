package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/openmesh-labs/identityhub/internal/domain"
)

func SeedEntity(tb testing.TB, ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, kind, displayName string) *types.Entity {
	tb.Helper()
	now := time.Now().UTC()
	e := &types.Entity{
		ID:          uuid.New(),
		TenantID:    tenantID,
		Kind:        kind,
		DisplayName: displayName,
		Attributes:  datatypes.JSON([]byte(`{}`)),
		Emails:      datatypes.JSON([]byte(`[]`)),
		Score:       -1,
		JoinedAt:    &now,
	}
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		tb.Fatalf("seed entity: %v", err)
	}
	return e
}

func SeedIdentity(tb testing.TB, ctx context.Context, tx *gorm.DB, e *types.Entity, platform, value string, verified bool) *types.Identity {
	tb.Helper()
	i := &types.Identity{
		ID:       uuid.New(),
		TenantID: e.TenantID,
		EntityID: e.ID,
		Platform: platform,
		Type:     types.IdentityTypeUsername,
		Value:    value,
		Verified: verified,
	}
	if err := tx.WithContext(ctx).Create(i).Error; err != nil {
		tb.Fatalf("seed identity: %v", err)
	}
	return i
}

func SeedActivity(tb testing.TB, ctx context.Context, tx *gorm.DB, e *types.Entity, platform, username string) *types.Activity {
	tb.Helper()
	a := &types.Activity{
		ID:        uuid.New(),
		TenantID:  e.TenantID,
		EntityID:  e.ID,
		Platform:  platform,
		Username:  username,
		Type:      "message",
		Timestamp: time.Now().UTC(),
		Payload:   datatypes.JSON([]byte(`{}`)),
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed activity: %v", err)
	}
	return a
}

func SeedAffiliation(tb testing.TB, ctx context.Context, tx *gorm.DB, member, org *types.Entity, title, sourcePlatform string) *types.Affiliation {
	tb.Helper()
	start := time.Now().UTC().AddDate(-1, 0, 0)
	a := &types.Affiliation{
		ID:               uuid.New(),
		MemberID:         member.ID,
		OrganizationID:   org.ID,
		Title:            title,
		DateStart:        &start,
		SourcePlatform:   sourcePlatform,
		AllowAffiliation: true,
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed affiliation: %v", err)
	}
	return a
}
