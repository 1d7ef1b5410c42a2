package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// customFieldPattern matches the opaque custom field ids Jira assigns.
var customFieldPattern = regexp.MustCompile(`^customfield_\d+$`)

// IsCustomFieldID reports whether key is an opaque custom field id.
func IsCustomFieldID(key string) bool {
	return customFieldPattern.MatchString(key)
}

// defaultProjectFields maps each known project to its custom field
// aliases. Config entries merge over these (config wins per field id).
var defaultProjectFields = map[string]map[string]string{
	"ITHELP": {
		"customfield_10055": "work_type",
	},
	"ITCM": {
		"customfield_10055": "work_type",
		"customfield_10059": "risk_level",
		"customfield_10003": "approvers",
		"customfield_10060": "affected_systems",
		"customfield_10061": "implementation_window_start",
		"customfield_10062": "implementation_window_end",
		"customfield_10063": "rollback_plan",
		"customfield_10068": "approval_date",
	},
	"ITPROJ": {},
	"ITPMO":  {},

	// IT is a service desk project; most aliases come from JSM.
	"IT": {
		"customfield_10004": "impact",
		"customfield_10041": "urgency",
		"customfield_10048": "severity",
		"customfield_10087": "category",
		"customfield_10042": "affected_services",
		"customfield_10049": "affected_hardware",
		"customfield_10044": "pending_reason",
		"customfield_10010": "request_type",
		"customfield_10002": "organizations",
		"customfield_10034": "request_participants",
		"customfield_10045": "major_incident",
		"customfield_10047": "responders",
		"customfield_10003": "approvers",
		"customfield_10035": "satisfaction",
		"customfield_10021": "flagged",
		"customfield_10001": "team",
	},

	// ITPROJECT is team-managed: epics link through the parent field,
	// not epic_link. epic_link stays mapped for reads only.
	"ITPROJECT": {
		"customfield_10011": "epic_name",
		"customfield_10014": "epic_link",
		"customfield_10015": "start_date",
		"customfield_10016": "story_points",
		"customfield_10020": "sprint",
		"customfield_10021": "flagged",
		"customfield_10001": "team",
	},
}

// FieldTable holds the per-project custom field mappings and their
// precomputed reverses. It is built once at configuration load and is
// read-only afterwards.
type FieldTable struct {
	forward map[string]map[string]string // project -> field id -> friendly name
	reverse map[string]map[string]string // project -> friendly name -> field id
}

// NewFieldTable builds a FieldTable from the built-in defaults merged
// with the configured overrides. A friendly-name collision inside one
// project is a configuration error, never a silent overwrite.
func NewFieldTable(overrides map[string]map[string]string) (*FieldTable, error) {
	forward := make(map[string]map[string]string, len(defaultProjectFields))
	for project, mapping := range defaultProjectFields {
		merged := make(map[string]string, len(mapping))
		for id, name := range mapping {
			merged[id] = name
		}
		forward[project] = merged
	}

	for project, mapping := range overrides {
		merged, ok := forward[project]
		if !ok {
			merged = make(map[string]string, len(mapping))
			forward[project] = merged
		}
		for id, name := range mapping {
			if !IsCustomFieldID(id) {
				return nil, fmt.Errorf("project %s: field id %q does not match customfield_<digits>", project, id)
			}
			merged[id] = name
		}
	}

	reverse := make(map[string]map[string]string, len(forward))
	for project, mapping := range forward {
		rev := make(map[string]string, len(mapping))
		for id, name := range mapping {
			if existing, dup := rev[name]; dup {
				ids := []string{existing, id}
				sort.Strings(ids)
				return nil, fmt.Errorf("project %s: friendly name %q is mapped by both %s and %s",
					project, name, ids[0], ids[1])
			}
			rev[name] = id
		}
		reverse[project] = rev
	}

	return &FieldTable{forward: forward, reverse: reverse}, nil
}

// Mapping returns the field id -> friendly name mapping for a project.
// Unknown projects get an empty mapping, never an error.
func (t *FieldTable) Mapping(project string) map[string]string {
	if m, ok := t.forward[project]; ok {
		return m
	}
	return map[string]string{}
}

// Reverse returns the friendly name -> field id mapping for a project.
func (t *FieldTable) Reverse(project string) map[string]string {
	if m, ok := t.reverse[project]; ok {
		return m
	}
	return map[string]string{}
}

// Projects returns the sorted list of projects with a configured mapping.
func (t *FieldTable) Projects() []string {
	keys := make([]string, 0, len(t.forward))
	for project := range t.forward {
		keys = append(keys, project)
	}
	sort.Strings(keys)
	return keys
}

// MapCustomFields translates the custom fields of a raw Jira field set
// into friendly names. Mapped fields land in known under their friendly
// name; unmapped custom fields land in overflow verbatim. Fields whose
// value is null are dropped entirely. overflow is nil when empty so its
// JSON key is omitted rather than serialized as an empty object.
func (t *FieldTable) MapCustomFields(project string, raw map[string]any) (known, overflow map[string]any) {
	mapping := t.Mapping(project)
	known = map[string]any{}

	for id, value := range raw {
		if !IsCustomFieldID(id) || value == nil {
			continue
		}
		if name, ok := mapping[id]; ok {
			known[name] = value
		} else {
			if overflow == nil {
				overflow = map[string]any{}
			}
			overflow[id] = value
		}
	}
	return known, overflow
}

// ReverseMapFields relabels friendly field names to their opaque ids for
// outbound request bodies. Unknown keys pass through unchanged, which
// lets callers supply raw customfield_XXXXX ids directly. Values are
// never transformed here.
func (t *FieldTable) ReverseMapFields(project string, friendly map[string]any) map[string]any {
	reverse := t.Reverse(project)
	result := make(map[string]any, len(friendly))
	for name, value := range friendly {
		if id, ok := reverse[name]; ok {
			result[id] = value
		} else {
			result[name] = value
		}
	}
	return result
}

// ProjectFromIssueKey extracts the project key from an issue key such as
// "ITPROJ-42". Keys without a dash return the whole string.
func ProjectFromIssueKey(issueKey string) string {
	if idx := strings.Index(issueKey, "-"); idx > 0 {
		return issueKey[:idx]
	}
	return issueKey
}
