package services

import (
	"encoding/json"
	"testing"
	"time"

	"gorm.io/datatypes"

	types "github.com/openmesh-labs/identityhub/internal/domain"
)

func TestMergeEntityFieldsKeepsPrimaryDisplayName(t *testing.T) {
	primary := &types.Entity{DisplayName: "Alice", Score: -1}
	secondary := &types.Entity{DisplayName: "alice2", Score: -1}

	updates := MergeEntityFields(primary, secondary)
	if _, ok := updates["display_name"]; ok {
		t.Fatalf("display_name should not change when primary has one: %v", updates)
	}
}

func TestMergeEntityFieldsFillsEmptyDisplayName(t *testing.T) {
	updates := MergeEntityFields(&types.Entity{}, &types.Entity{DisplayName: "alice2"})
	if updates["display_name"] != "alice2" {
		t.Fatalf("expected display_name fallback, got %v", updates)
	}
}

func TestMergeEntityFieldsEarliestJoinedAtWins(t *testing.T) {
	early := time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC)

	updates := MergeEntityFields(&types.Entity{JoinedAt: &late}, &types.Entity{JoinedAt: &early})
	got, ok := updates["joined_at"].(*time.Time)
	if !ok || !got.Equal(early) {
		t.Fatalf("expected earliest joined_at, got %v", updates["joined_at"])
	}

	updates = MergeEntityFields(&types.Entity{JoinedAt: &early}, &types.Entity{JoinedAt: &late})
	if _, ok := updates["joined_at"]; ok {
		t.Fatalf("primary already earliest, nothing to update: %v", updates)
	}
}

func TestMergeEntityFieldsMaxScoreWins(t *testing.T) {
	updates := MergeEntityFields(&types.Entity{Score: 3}, &types.Entity{Score: 8})
	if updates["score"] != 8 {
		t.Fatalf("expected score 8, got %v", updates["score"])
	}

	updates = MergeEntityFields(&types.Entity{Score: 9}, &types.Entity{Score: 8})
	if _, ok := updates["score"]; ok {
		t.Fatalf("lower secondary score should not update: %v", updates)
	}
}

func TestMergeEntityFieldsUnionsEmails(t *testing.T) {
	primary := &types.Entity{Emails: datatypes.JSON(`["a@x.io","b@x.io"]`)}
	secondary := &types.Entity{Emails: datatypes.JSON(`["B@x.io","c@x.io"]`)}

	updates := MergeEntityFields(primary, secondary)
	raw, ok := updates["emails"].(datatypes.JSON)
	if !ok {
		t.Fatalf("expected emails update, got %v", updates)
	}
	var emails []string
	if err := json.Unmarshal(raw, &emails); err != nil {
		t.Fatalf("decode emails: %v", err)
	}
	if len(emails) != 3 {
		t.Fatalf("expected 3 unique emails, got %v", emails)
	}
}

func TestMergeEntityFieldsAttributesPrimaryWinsOnConflict(t *testing.T) {
	primary := &types.Entity{Attributes: datatypes.JSON(`{"bio":"keeper","location":"Lisbon"}`)}
	secondary := &types.Entity{Attributes: datatypes.JSON(`{"bio":"loser","url":"https://x.io"}`)}

	updates := MergeEntityFields(primary, secondary)
	raw, ok := updates["attributes"].(datatypes.JSON)
	if !ok {
		t.Fatalf("expected attributes update, got %v", updates)
	}
	var attrs map[string]string
	if err := json.Unmarshal(raw, &attrs); err != nil {
		t.Fatalf("decode attributes: %v", err)
	}
	if attrs["bio"] != "keeper" {
		t.Fatalf("primary value should win on conflict, got %q", attrs["bio"])
	}
	if attrs["url"] != "https://x.io" {
		t.Fatalf("secondary-only key should be adopted, got %v", attrs)
	}
}

func TestMergeEntityFieldsNoChangesYieldsEmptyUpdates(t *testing.T) {
	now := time.Now().UTC()
	primary := &types.Entity{DisplayName: "Alice", Score: 5, JoinedAt: &now}
	secondary := &types.Entity{Score: 5, JoinedAt: &now}

	updates := MergeEntityFields(primary, secondary)
	if len(updates) != 0 {
		t.Fatalf("expected no updates, got %v", updates)
	}
}

func TestMergeEntityFieldsManuallyCreatedIsSticky(t *testing.T) {
	updates := MergeEntityFields(&types.Entity{}, &types.Entity{ManuallyCreated: true})
	if updates["manually_created"] != true {
		t.Fatalf("expected manually_created carryover, got %v", updates)
	}
}
