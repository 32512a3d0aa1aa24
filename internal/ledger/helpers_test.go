package ledger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- strPtr Tests ---

func TestStrPtr(t *testing.T) {
	t.Run("non-empty string", func(t *testing.T) {
		p := strPtr("ref_123")
		require.NotNil(t, p)
		assert.Equal(t, "ref_123", *p)
	})

	t.Run("empty string returns nil", func(t *testing.T) {
		assert.Nil(t, strPtr(""))
	})
}

// --- ensureJSON Tests ---

func TestEnsureJSON(t *testing.T) {
	t.Run("nil returns empty object", func(t *testing.T) {
		assert.Equal(t, json.RawMessage(`{}`), ensureJSON(nil))
	})

	t.Run("non-nil passthrough", func(t *testing.T) {
		data := json.RawMessage(`{"game_id":"g1"}`)
		assert.Equal(t, data, ensureJSON(data))
	})
}

// --- mergeMeta Tests ---

func TestMergeMeta(t *testing.T) {
	t.Run("nil base with extras", func(t *testing.T) {
		result := mergeMeta(nil, map[string]interface{}{"reference": "ps_1"})
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(result, &m))
		assert.Equal(t, "ps_1", m["reference"])
	})

	t.Run("existing base with extras", func(t *testing.T) {
		base := json.RawMessage(`{"granted_by":"admin@example.com"}`)
		result := mergeMeta(base, map[string]interface{}{"reference": "ps_2"})
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(result, &m))
		assert.Equal(t, "admin@example.com", m["granted_by"])
		assert.Equal(t, "ps_2", m["reference"])
	})

	t.Run("extras overwrite base", func(t *testing.T) {
		base := json.RawMessage(`{"reference":"old"}`)
		result := mergeMeta(base, map[string]interface{}{"reference": "new"})
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(result, &m))
		assert.Equal(t, "new", m["reference"])
	})

	t.Run("invalid base is replaced", func(t *testing.T) {
		result := mergeMeta(json.RawMessage(`not-json`), map[string]interface{}{"k": 1})
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(result, &m))
		assert.Equal(t, float64(1), m["k"])
	})
}
