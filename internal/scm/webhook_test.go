package scm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mrEventBody = `{
	"object_kind": "merge_request",
	"project": {"id": 42},
	"object_attributes": {
		"iid": 7,
		"action": "open",
		"state": "opened",
		"last_commit": {"id": "abc123"}
	}
}`

func TestParseMergeRequestEvent(t *testing.T) {
	ev, ok, err := ParseMergeRequestEvent([]byte(mrEventBody))
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, 42, ev.ProjectID)
	assert.Equal(t, 7, ev.MRIID)
	assert.Equal(t, "open", ev.Action)
	assert.Equal(t, "abc123", ev.HeadSHA)
	assert.Equal(t, "42/7@abc123", ev.Key())
}

func TestParseMergeRequestEventIgnoresOtherKinds(t *testing.T) {
	_, ok, err := ParseMergeRequestEvent([]byte(`{"object_kind": "note", "project": {"id": 1}}`))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseMergeRequestEventIgnoresNonReviewableActions(t *testing.T) {
	for _, action := range []string{"close", "merge", "approved", ""} {
		body := `{"object_kind": "merge_request", "project": {"id": 1}, "object_attributes": {"iid": 2, "action": "` + action + `"}}`
		_, ok, err := ParseMergeRequestEvent([]byte(body))
		require.NoError(t, err)
		assert.False(t, ok, "action %q should be ignored", action)
	}
}

func TestParseMergeRequestEventRejectsMalformedPayloads(t *testing.T) {
	_, _, err := ParseMergeRequestEvent([]byte(`not json`))
	assert.Error(t, err)

	_, _, err = ParseMergeRequestEvent([]byte(`{"object_kind": "merge_request", "object_attributes": {"action": "open"}}`))
	assert.Error(t, err)
}
