package authz

import "sort"

// Table names a storage table guarded at the storage boundary.
type Table string

const (
	TableProfiles             Table = "profiles"
	TableMemberships          Table = "memberships"
	TableBoardPositions       Table = "board_positions"
	TableMessageTemplates     Table = "message_templates"
	TableMessageLogs          Table = "message_logs"
	TableOrganizationSettings Table = "organization_settings"
	TableMembershipReport     Table = "membership_report"
	TableActivities           Table = "activities"
	TableInteractions         Table = "interactions"
	TableNotes                Table = "notes"
	TableTags                 Table = "profile_tags"
	TableFollowUps            Table = "follow_ups"
)

// TableRule binds a table to the resource whose grants govern it, plus the actions an
// identity may always perform on rows it owns.
type TableRule struct {
	Table    Table
	Resource Resource

	// OwnerColumn identifies the owning identity of a row. Empty means no self-access.
	OwnerColumn string
	SelfActions ActionSet

	// AdminColumns may only be changed by an admin, including on the caller's own row.
	AdminColumns []string

	// PrivateColumn and AuthorColumn hide rows flagged private from everyone but their author.
	PrivateColumn string
	AuthorColumn  string
}

var tableRules = map[Table]TableRule{
	TableProfiles: {
		Table:       TableProfiles,
		Resource:    ResourceMembers,
		OwnerColumn:  "id",
		SelfActions:  SetOf(ActionRead, ActionUpdate),
		AdminColumns: []string{"role", "status"},
	},
	TableMemberships: {
		Table:       TableMemberships,
		Resource:    ResourceMemberships,
		OwnerColumn: "profile_id",
		SelfActions: SetOf(ActionRead),
	},
	TableBoardPositions:       {Table: TableBoardPositions, Resource: ResourceBoardPositions},
	TableMessageTemplates:     {Table: TableMessageTemplates, Resource: ResourceTemplates},
	TableMessageLogs:          {Table: TableMessageLogs, Resource: ResourceTemplates},
	TableOrganizationSettings: {Table: TableOrganizationSettings, Resource: ResourceSettings},
	TableMembershipReport:     {Table: TableMembershipReport, Resource: ResourceReports},
	TableActivities:           {Table: TableActivities, Resource: ResourceMembers},
	TableInteractions:         {Table: TableInteractions, Resource: ResourceMembers},
	TableNotes: {
		Table:         TableNotes,
		Resource:      ResourceMembers,
		PrivateColumn: "is_private",
		AuthorColumn:  "author_id",
	},
	TableTags:                 {Table: TableTags, Resource: ResourceMembers},
	TableFollowUps:            {Table: TableFollowUps, Resource: ResourceMembers},
}

// Rule returns the rule for table.
func Rule(table Table) (TableRule, bool) {
	r, ok := tableRules[table]
	return r, ok
}

// Tables lists every guarded table in name order.
func Tables() []Table {
	out := make([]Table, 0, len(tableRules))
	for t := range tableRules {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Reason explains a storage-boundary decision.
type Reason string

const (
	ReasonSelfAccess   Reason = "self_access"
	ReasonRoleGrant    Reason = "role_grant"
	ReasonDenied       Reason = "denied"
	ReasonUnknownTable Reason = "unknown_table"
)

// Decision is the outcome of a storage-boundary check.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// SelfAccess reports whether the owner of a row in table may perform action on it
// regardless of role. It never needs the caller's role.
func SelfAccess(table Table, action Action) bool {
	r, ok := tableRules[table]
	return ok && r.OwnerColumn != "" && r.SelfActions.Has(action)
}

// Decide evaluates the storage rule for table: self-access first, then the role grant.
func Decide(role Role, table Table, action Action, owner bool) Decision {
	r, ok := tableRules[table]
	if !ok {
		return Decision{Reason: ReasonUnknownTable}
	}
	if owner && SelfAccess(table, action) {
		return Decision{Allowed: true, Reason: ReasonSelfAccess}
	}
	if HasPermission(role, r.Resource, action) {
		return Decision{Allowed: true, Reason: ReasonRoleGrant}
	}
	return Decision{Reason: ReasonDenied}
}
