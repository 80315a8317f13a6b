package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListIsStable(t *testing.T) {
	list := List()
	require.Len(t, list, 4)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].Key, list[i].Key, "catalog must be sorted by key")
	}
}

func TestLookup(t *testing.T) {
	tmpl, ok := Lookup("access_control_policy")
	require.True(t, ok)
	assert.Equal(t, "Access Control Policy", tmpl.Title)

	_, ok = Lookup("nonexistent")
	assert.False(t, ok)
}

func TestRenderSubstitutesParams(t *testing.T) {
	html, err := Render(DraftParams{
		TemplateKey:       "access_control_policy",
		OrgName:           "Globex",
		PasswordMinLength: 14,
		MFARequiredRoles:  []string{"admin", "owner"},
	})
	require.NoError(t, err)
	assert.Contains(t, html, "Globex")
	assert.Contains(t, html, "14")
	assert.Contains(t, html, "admin, owner")
}

func TestRenderEscapesHTML(t *testing.T) {
	html, err := Render(DraftParams{
		TemplateKey: "data_retention_policy",
		OrgName:     "<script>alert(1)</script>",
	})
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := Render(DraftParams{TemplateKey: "missing", OrgName: "Acme"})
	require.Error(t, err)
}
