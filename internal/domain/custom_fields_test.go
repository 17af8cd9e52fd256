package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

func TestMergeAddsAndOverwrites(t *testing.T) {
	existing := domain.CustomFields{"severity": "minor", "building": "HQ"}
	incoming := domain.CustomFields{"severity": "major", "floor": 3}

	merged := existing.Merge(incoming)
	require.Equal(t, "major", merged["severity"])
	require.Equal(t, "HQ", merged["building"])
	require.Equal(t, 3, merged["floor"])

	// inputs untouched
	require.Equal(t, "minor", existing["severity"])
}

func TestMergeConcatenatesAttachments(t *testing.T) {
	existing := domain.CustomFields{"attachments": []any{"a.png"}}
	incoming := domain.CustomFields{"attachments": []any{"b.png", "c.png"}}

	merged := existing.Merge(incoming)
	require.Equal(t, []any{"a.png", "b.png", "c.png"}, merged["attachments"])
	require.Len(t, existing["attachments"], 1)
}

func TestMergeAttachmentsNonArrayFallsBackToOverwrite(t *testing.T) {
	existing := domain.CustomFields{"attachments": "legacy-value"}
	incoming := domain.CustomFields{"attachments": []any{"b.png"}}

	merged := existing.Merge(incoming)
	require.Equal(t, []any{"b.png"}, merged["attachments"])
}

func TestMergeOntoNil(t *testing.T) {
	var existing domain.CustomFields

	require.Nil(t, existing.Merge(nil))

	merged := existing.Merge(domain.CustomFields{"k": "v"})
	require.Equal(t, "v", merged["k"])
}
