package scm

import (
	"encoding/json"
	"fmt"
)

// MergeRequestEvent is the subset of a merge request webhook payload the
// analyzer acts on.
type MergeRequestEvent struct {
	ProjectID int
	MRIID     int
	Action    string
	HeadSHA   string
}

// Key identifies one revision of one merge request for idempotency
// tracking.
func (e MergeRequestEvent) Key() string {
	return fmt.Sprintf("%d/%d@%s", e.ProjectID, e.MRIID, e.HeadSHA)
}

// Only these actions carry new code worth reviewing. Approvals, merges
// and label churn are ignored.
var reviewableActions = map[string]bool{
	"open":   true,
	"update": true,
	"reopen": true,
}

type mergeRequestPayload struct {
	ObjectKind string `json:"object_kind"`
	Project    struct {
		ID int `json:"id"`
	} `json:"project"`
	ObjectAttributes struct {
		IID        int    `json:"iid"`
		Action     string `json:"action"`
		State      string `json:"state"`
		LastCommit struct {
			ID string `json:"id"`
		} `json:"last_commit"`
	} `json:"object_attributes"`
}

// ParseMergeRequestEvent decodes a webhook body. The second return is
// false for well-formed events that should simply be ignored (wrong
// object kind or a non-reviewable action).
func ParseMergeRequestEvent(body []byte) (MergeRequestEvent, bool, error) {
	var payload mergeRequestPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return MergeRequestEvent{}, false, fmt.Errorf("invalid webhook payload: %w", err)
	}

	if payload.ObjectKind != "merge_request" {
		return MergeRequestEvent{}, false, nil
	}
	if !reviewableActions[payload.ObjectAttributes.Action] {
		return MergeRequestEvent{}, false, nil
	}
	if payload.Project.ID == 0 || payload.ObjectAttributes.IID == 0 {
		return MergeRequestEvent{}, false, fmt.Errorf("merge request payload missing project id or iid")
	}

	return MergeRequestEvent{
		ProjectID: payload.Project.ID,
		MRIID:     payload.ObjectAttributes.IID,
		Action:    payload.ObjectAttributes.Action,
		HeadSHA:   payload.ObjectAttributes.LastCommit.ID,
	}, true, nil
}
