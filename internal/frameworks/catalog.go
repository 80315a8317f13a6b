// Package frameworks holds the static compliance framework catalog.
package frameworks

import "strings"

// Control is one top-level control or category within a framework.
type Control struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Function string `json:"function,omitempty"`
}

// Framework describes a published control framework.
type Framework struct {
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	Publisher string    `json:"publisher"`
	Controls  []Control `json:"controls"`
}

// Meta is the list-view projection of a framework.
type Meta struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	Publisher string `json:"publisher"`
	Count     int    `json:"count"`
}

// CIS Critical Security Controls v8, top-level 18 controls.
var cisV8 = Framework{
	Key:       "cis_v8",
	Name:      "CIS Critical Security Controls v8",
	Publisher: "Center for Internet Security (CIS)",
	Controls: []Control{
		{ID: "CIS-01", Title: "Inventory and Control of Enterprise Assets"},
		{ID: "CIS-02", Title: "Inventory and Control of Software Assets"},
		{ID: "CIS-03", Title: "Data Protection"},
		{ID: "CIS-04", Title: "Secure Configuration of Enterprise Assets and Software"},
		{ID: "CIS-05", Title: "Account Management"},
		{ID: "CIS-06", Title: "Access Control Management"},
		{ID: "CIS-07", Title: "Continuous Vulnerability Management"},
		{ID: "CIS-08", Title: "Audit Log Management"},
		{ID: "CIS-09", Title: "Email and Web Browser Protections"},
		{ID: "CIS-10", Title: "Malware Defenses"},
		{ID: "CIS-11", Title: "Data Recovery"},
		{ID: "CIS-12", Title: "Network Infrastructure Management"},
		{ID: "CIS-13", Title: "Network Monitoring and Defense"},
		{ID: "CIS-14", Title: "Security Awareness and Skills Training"},
		{ID: "CIS-15", Title: "Service Provider Management"},
		{ID: "CIS-16", Title: "Application Software Security"},
		{ID: "CIS-17", Title: "Incident Response Management"},
		{ID: "CIS-18", Title: "Penetration Testing"},
	},
}

// NIST CSF v1.1 categories. Subcategories are intentionally omitted.
var nistCSF = Framework{
	Key:       "nist_csf",
	Name:      "NIST Cybersecurity Framework (v1.1)",
	Publisher: "NIST",
	Controls: []Control{
		{ID: "ID.AM", Title: "Asset Management", Function: "ID"},
		{ID: "ID.BE", Title: "Business Environment", Function: "ID"},
		{ID: "ID.GV", Title: "Governance", Function: "ID"},
		{ID: "ID.RA", Title: "Risk Assessment", Function: "ID"},
		{ID: "ID.RM", Title: "Risk Management Strategy", Function: "ID"},
		{ID: "ID.SC", Title: "Supply Chain Risk Management", Function: "ID"},
		{ID: "PR.AC", Title: "Identity Management, Authentication and Access Control", Function: "PR"},
		{ID: "PR.AT", Title: "Awareness and Training", Function: "PR"},
		{ID: "PR.DS", Title: "Data Security", Function: "PR"},
		{ID: "PR.IP", Title: "Information Protection Processes and Procedures", Function: "PR"},
		{ID: "PR.MA", Title: "Maintenance", Function: "PR"},
		{ID: "PR.PT", Title: "Protective Technology", Function: "PR"},
		{ID: "DE.AE", Title: "Anomalies and Events", Function: "DE"},
		{ID: "DE.CM", Title: "Security Continuous Monitoring", Function: "DE"},
		{ID: "DE.DP", Title: "Detection Processes", Function: "DE"},
		{ID: "RS.RP", Title: "Response Planning", Function: "RS"},
		{ID: "RS.CO", Title: "Communications", Function: "RS"},
		{ID: "RS.AN", Title: "Analysis", Function: "RS"},
		{ID: "RS.MI", Title: "Mitigation", Function: "RS"},
		{ID: "RS.IM", Title: "Improvements", Function: "RS"},
		{ID: "RC.RP", Title: "Recovery Planning", Function: "RC"},
		{ID: "RC.IM", Title: "Improvements", Function: "RC"},
		{ID: "RC.CO", Title: "Communications", Function: "RC"},
	},
}

var catalog = map[string]Framework{
	cisV8.Key:   cisV8,
	nistCSF.Key: nistCSF,
}

// List returns metadata for every framework in the catalog.
func List() []Meta {
	result := []Meta{
		{Key: cisV8.Key, Name: cisV8.Name, Publisher: cisV8.Publisher, Count: len(cisV8.Controls)},
		{Key: nistCSF.Key, Name: nistCSF.Name, Publisher: nistCSF.Publisher, Count: len(nistCSF.Controls)},
	}
	return result
}

// Lookup returns a framework by key.
func Lookup(key string) (Framework, bool) {
	fw, ok := catalog[key]
	return fw, ok
}

// HasControl reports whether the framework defines the control id.
func HasControl(key, controlID string) bool {
	fw, ok := catalog[key]
	if !ok {
		return false
	}
	for _, c := range fw.Controls {
		if c.ID == controlID {
			return true
		}
	}
	return false
}

// FilterControls applies optional substring and function filters.
func FilterControls(fw Framework, query, function string) []Control {
	controls := fw.Controls
	if function != "" {
		filtered := make([]Control, 0, len(controls))
		for _, c := range controls {
			if strings.EqualFold(c.Function, function) {
				filtered = append(filtered, c)
			}
		}
		controls = filtered
	}
	if query != "" {
		q := strings.ToLower(strings.TrimSpace(query))
		filtered := make([]Control, 0, len(controls))
		for _, c := range controls {
			if strings.Contains(strings.ToLower(c.ID), q) || strings.Contains(strings.ToLower(c.Title), q) {
				filtered = append(filtered, c)
			}
		}
		controls = filtered
	}
	return controls
}
