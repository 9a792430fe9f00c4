package services

import (
	"encoding/json"
	"sort"
	"strings"

	"gorm.io/datatypes"

	types "github.com/openmesh-labs/identityhub/internal/domain"
)

// MergeEntityFields folds the secondary entity's scalar fields into the
// primary and returns the column updates to apply to the primary row. The
// primary's display name always wins; joined_at keeps the earliest known
// date; score keeps the maximum; emails are unioned; reach and attributes
// are merged key by key with the primary taking precedence on conflicts.
func MergeEntityFields(primary, secondary *types.Entity) map[string]interface{} {
	updates := map[string]interface{}{}

	if secondary.JoinedAt != nil && (primary.JoinedAt == nil || secondary.JoinedAt.Before(*primary.JoinedAt)) {
		updates["joined_at"] = secondary.JoinedAt
	}

	if secondary.Score > primary.Score {
		updates["score"] = secondary.Score
	}

	if emails, changed := unionEmails(primary.Emails, secondary.Emails); changed {
		updates["emails"] = emails
	}

	if reach, changed := mergeJSONObjects(primary.Reach, secondary.Reach); changed {
		updates["reach"] = reach
	}

	if attrs, changed := mergeJSONObjects(primary.Attributes, secondary.Attributes); changed {
		updates["attributes"] = attrs
	}

	if secondary.ManuallyCreated && !primary.ManuallyCreated {
		updates["manually_created"] = true
	}

	if primary.DisplayName == "" && secondary.DisplayName != "" {
		updates["display_name"] = secondary.DisplayName
	}

	return updates
}

func unionEmails(primary, secondary datatypes.JSON) (datatypes.JSON, bool) {
	base := decodeEmails(primary)
	extra := decodeEmails(secondary)
	if len(extra) == 0 {
		return nil, false
	}

	seen := make(map[string]struct{}, len(base))
	for _, e := range base {
		seen[strings.ToLower(e)] = struct{}{}
	}

	merged := append([]string{}, base...)
	added := false
	for _, e := range extra {
		if _, ok := seen[strings.ToLower(e)]; ok {
			continue
		}
		seen[strings.ToLower(e)] = struct{}{}
		merged = append(merged, e)
		added = true
	}
	if !added {
		return nil, false
	}

	sort.Strings(merged)
	out, err := json.Marshal(merged)
	if err != nil {
		return nil, false
	}
	return datatypes.JSON(out), true
}

func decodeEmails(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var emails []string
	if err := json.Unmarshal(raw, &emails); err != nil {
		return nil
	}
	return emails
}

// mergeJSONObjects overlays secondary onto primary without clobbering
// keys the primary already defines. Returns false when nothing new came
// in from the secondary side.
func mergeJSONObjects(primary, secondary datatypes.JSON) (datatypes.JSON, bool) {
	extra := decodeObject(secondary)
	if len(extra) == 0 {
		return nil, false
	}
	base := decodeObject(primary)
	if base == nil {
		base = map[string]json.RawMessage{}
	}

	added := false
	for k, v := range extra {
		if _, ok := base[k]; ok {
			continue
		}
		base[k] = v
		added = true
	}
	if !added {
		return nil, false
	}

	out, err := json.Marshal(base)
	if err != nil {
		return nil, false
	}
	return datatypes.JSON(out), true
}

func decodeObject(raw datatypes.JSON) map[string]json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	return obj
}
