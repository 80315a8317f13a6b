package frameworks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList(t *testing.T) {
	list := List()
	require.Len(t, list, 2)
	assert.Equal(t, "cis_v8", list[0].Key)
	assert.Equal(t, 18, list[0].Count)
	assert.Equal(t, "nist_csf", list[1].Key)
	assert.Equal(t, 23, list[1].Count)
}

func TestLookup(t *testing.T) {
	fw, ok := Lookup("cis_v8")
	require.True(t, ok)
	assert.Equal(t, "CIS Critical Security Controls v8", fw.Name)

	_, ok = Lookup("iso_27001")
	assert.False(t, ok)
}

func TestHasControl(t *testing.T) {
	assert.True(t, HasControl("nist_csf", "PR.AC"))
	assert.False(t, HasControl("nist_csf", "PR.XX"))
	assert.False(t, HasControl("missing", "PR.AC"))
}

func TestFilterControlsByFunction(t *testing.T) {
	fw, _ := Lookup("nist_csf")

	controls := FilterControls(fw, "", "pr")
	require.Len(t, controls, 6)
	for _, c := range controls {
		assert.Equal(t, "PR", c.Function)
	}
}

func TestFilterControlsByQuery(t *testing.T) {
	fw, _ := Lookup("cis_v8")

	controls := FilterControls(fw, "audit log", "")
	require.Len(t, controls, 1)
	assert.Equal(t, "CIS-08", controls[0].ID)

	controls = FilterControls(fw, "cis-1", "")
	assert.Len(t, controls, 9)
}

func TestFilterControlsCombined(t *testing.T) {
	fw, _ := Lookup("nist_csf")

	controls := FilterControls(fw, "improvements", "RC")
	require.Len(t, controls, 1)
	assert.Equal(t, "RC.IM", controls[0].ID)
}
