// Package templates holds the static policy template catalog and renders
// draft parameters into policy HTML.
package templates

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"strings"
)

// DraftParams are the tunable inputs captured with every version. The full
// set is stored as the version's params snapshot so any version can be
// re-rendered or rolled back later.
type DraftParams struct {
	TemplateKey       string   `json:"template_key" validate:"required"`
	OrgName           string   `json:"org_name" validate:"required"`
	PasswordMinLength int      `json:"password_min_length"`
	MFARequiredRoles  []string `json:"mfa_required_roles"`
	LogRetentionDays  int      `json:"log_retention_days"`
}

// Template is one entry in the policy template catalog.
type Template struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	body  *template.Template
}

var catalog = buildCatalog()

func buildCatalog() map[string]*Template {
	defs := []struct {
		key   string
		title string
		body  string
	}{
		{
			key:   "access_control_policy",
			title: "Access Control Policy",
			body: `<h1>Access Control Policy</h1>
<p>This policy defines how {{.OrgName}} governs access to information systems.</p>
<h2>Authentication</h2>
<p>Passwords must be at least {{.PasswordMinLength}} characters long.</p>
{{if .MFARequiredRoles}}<p>Multi-factor authentication is required for the following roles: {{join .MFARequiredRoles ", "}}.</p>{{end}}
<h2>Review</h2>
<p>Access grants are reviewed quarterly by the security team of {{.OrgName}}.</p>`,
		},
		{
			key:   "audit_logging_policy",
			title: "Audit Logging Policy",
			body: `<h1>Audit Logging Policy</h1>
<p>{{.OrgName}} records security-relevant events across production systems.</p>
<h2>Retention</h2>
<p>Audit logs are retained for {{.LogRetentionDays}} days and protected against tampering.</p>
<h2>Access</h2>
<p>Log access is restricted to authorized personnel of {{.OrgName}}.</p>`,
		},
		{
			key:   "data_retention_policy",
			title: "Data Retention Policy",
			body: `<h1>Data Retention Policy</h1>
<p>This policy establishes retention periods for data held by {{.OrgName}}.</p>
<h2>Operational Data</h2>
<p>System and audit records are kept for {{.LogRetentionDays}} days unless a legal hold applies.</p>
<h2>Disposal</h2>
<p>Data past its retention period is disposed of securely.</p>`,
		},
		{
			key:   "incident_response_policy",
			title: "Incident Response Policy",
			body: `<h1>Incident Response Policy</h1>
<p>{{.OrgName}} maintains a documented process for detecting, reporting and responding to security incidents.</p>
<h2>Escalation</h2>
{{if .MFARequiredRoles}}<p>Incident commanders are drawn from: {{join .MFARequiredRoles ", "}}.</p>{{end}}
<h2>Evidence</h2>
<p>Incident evidence is preserved for {{.LogRetentionDays}} days at minimum.</p>`,
		},
	}

	funcs := template.FuncMap{"join": strings.Join}
	result := make(map[string]*Template, len(defs))
	for _, def := range defs {
		result[def.key] = &Template{
			Key:   def.key,
			Title: def.title,
			body:  template.Must(template.New(def.key).Funcs(funcs).Parse(def.body)),
		}
	}
	return result
}

// Lookup returns the template for a key, or false when unknown.
func Lookup(key string) (*Template, bool) {
	t, ok := catalog[key]
	return t, ok
}

// List returns the catalog in stable key order.
func List() []*Template {
	keys := make([]string, 0, len(catalog))
	for k := range catalog {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	result := make([]*Template, 0, len(keys))
	for _, k := range keys {
		result = append(result, catalog[k])
	}
	return result
}

// Render produces the policy HTML for the given parameters.
func Render(params DraftParams) (string, error) {
	t, ok := Lookup(params.TemplateKey)
	if !ok {
		return "", fmt.Errorf("unknown template key %q", params.TemplateKey)
	}
	buf := &bytes.Buffer{}
	if err := t.body.Execute(buf, params); err != nil {
		return "", fmt.Errorf("render template %s: %w", params.TemplateKey, err)
	}
	return buf.String(), nil
}
