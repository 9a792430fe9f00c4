package merge

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/openmesh-labs/identityhub/internal/domain/entity"
)

func TestBackupRoundTrip(t *testing.T) {
	joined := time.Date(2021, 5, 4, 12, 0, 0, 0, time.UTC)
	e := &entity.Entity{
		ID:          uuid.New(),
		TenantID:    uuid.New(),
		Kind:        entity.KindMember,
		DisplayName: "Alice",
		Attributes:  datatypes.JSON(`{"bio":"dev"}`),
		Emails:      datatypes.JSON(`["a@x.io"]`),
		Score:       7,
		JoinedAt:    &joined,
	}

	snap := SnapshotOf(e)
	snap.Identities = []entity.Identity{{
		ID:       uuid.New(),
		EntityID: e.ID,
		Platform: "github",
		Type:     entity.IdentityTypeUsername,
		Value:    "alice",
		Verified: true,
	}}

	backup := Backup{Primary: snap, Secondary: snap}
	raw, err := json.Marshal(backup)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var restored Backup
	if err := json.Unmarshal(raw, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if restored.Primary.ID != e.ID {
		t.Fatalf("id mismatch: %s != %s", restored.Primary.ID, e.ID)
	}
	if restored.Primary.DisplayName != "Alice" || restored.Primary.Score != 7 {
		t.Fatalf("fields lost: %+v", restored.Primary)
	}
	if restored.Primary.JoinedAt == nil || !restored.Primary.JoinedAt.Equal(joined) {
		t.Fatalf("joined_at lost: %v", restored.Primary.JoinedAt)
	}
	if len(restored.Primary.Identities) != 1 || !restored.Primary.Identities[0].Verified {
		t.Fatalf("identities lost: %+v", restored.Primary.Identities)
	}
}

func TestSnapshotOmitsRelationsUntilAttached(t *testing.T) {
	snap := SnapshotOf(&entity.Entity{ID: uuid.New()})
	if snap.Identities != nil || snap.Affiliations != nil {
		t.Fatalf("fresh snapshot should carry no relations: %+v", snap)
	}
}
