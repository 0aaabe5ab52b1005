package authz

import (
	"fmt"
	"strings"
)

// Policy is a row-level-security policy compiled from a TableRule for one command.
type Policy struct {
	Name    string
	Table   Table
	Command string
	Action  Action

	// SelfColumn is set when the owner of a row is allowed through before any role check.
	SelfColumn string
	Roles      []Role

	// Visibility further restricts which rows SELECT returns, whatever the role.
	Visibility string
}

var commandActions = []struct {
	command string
	action  Action
}{
	{"SELECT", ActionRead},
	{"INSERT", ActionCreate},
	{"UPDATE", ActionUpdate},
	{"DELETE", ActionDelete},
}

// PostgresPolicies compiles the table rules into one policy per (table, command).
func PostgresPolicies() []Policy {
	out := make([]Policy, 0, len(tableRules)*len(commandActions))
	for _, t := range Tables() {
		rule := tableRules[t]
		for _, ca := range commandActions {
			p := Policy{
				Name:    fmt.Sprintf("%s_%s", t, strings.ToLower(ca.command)),
				Table:   t,
				Command: ca.command,
				Action:  ca.action,
			}
			if rule.OwnerColumn != "" && rule.SelfActions.Has(ca.action) {
				p.SelfColumn = rule.OwnerColumn
			}
			if ca.action == ActionRead && rule.PrivateColumn != "" {
				p.Visibility = fmt.Sprintf("%s = false OR %s = app_current_identity()", rule.PrivateColumn, rule.AuthorColumn)
			}
			for _, r := range allRoles {
				if HasPermission(r, rule.Resource, ca.action) {
					p.Roles = append(p.Roles, r)
				}
			}
			out = append(out, p)
		}
	}
	return out
}

// Allows reports what the compiled policy admits for a caller with role, owning the row or not.
func (p Policy) Allows(role Role, owner bool) bool {
	if owner && p.SelfColumn != "" {
		return true
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Expression renders the policy predicate. The self clause comes first so Postgres can
// short-circuit before calling app_current_role().
func (p Policy) Expression() string {
	var clauses []string
	if p.SelfColumn != "" {
		clauses = append(clauses, fmt.Sprintf("%s = app_current_identity()", p.SelfColumn))
	}
	if len(p.Roles) > 0 {
		quoted := make([]string, len(p.Roles))
		for i, r := range p.Roles {
			quoted[i] = "'" + string(r) + "'"
		}
		clauses = append(clauses, fmt.Sprintf("app_current_role() IN (%s)", strings.Join(quoted, ", ")))
	}
	if len(clauses) == 0 {
		return "false"
	}
	expr := "(" + strings.Join(clauses, ") OR (") + ")"
	if p.Visibility != "" {
		expr = "(" + expr + ") AND (" + p.Visibility + ")"
	}
	return expr
}

// SQL renders the CREATE POLICY statement.
func (p Policy) SQL() string {
	expr := p.Expression()
	switch p.Command {
	case "INSERT":
		return fmt.Sprintf("CREATE POLICY %s ON %s FOR INSERT WITH CHECK (%s);", p.Name, p.Table, expr)
	case "UPDATE":
		return fmt.Sprintf("CREATE POLICY %s ON %s FOR UPDATE USING (%s) WITH CHECK (%s);", p.Name, p.Table, expr, expr)
	default:
		return fmt.Sprintf("CREATE POLICY %s ON %s FOR %s USING (%s);", p.Name, p.Table, p.Command, expr)
	}
}

// ColumnGuard rejects changes to a table's admin-only columns by any other role. Policies
// work on whole rows, so the owner's self-access would otherwise cover these columns too.
type ColumnGuard struct {
	Table   Table
	Columns []string
	Roles   []Role
}

// PostgresColumnGuards compiles every rule with AdminColumns.
func PostgresColumnGuards() []ColumnGuard {
	var out []ColumnGuard
	for _, t := range Tables() {
		rule := tableRules[t]
		if len(rule.AdminColumns) == 0 {
			continue
		}
		out = append(out, ColumnGuard{Table: t, Columns: rule.AdminColumns, Roles: []Role{RoleAdmin}})
	}
	return out
}

// Allows reports whether role may write a row whose guarded columns changed (or not).
func (g ColumnGuard) Allows(role Role, changed bool) bool {
	if !changed {
		return true
	}
	for _, r := range g.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (g ColumnGuard) name() string { return string(g.Table) + "_guard_columns" }

// SQL renders the trigger function and a BEFORE UPDATE trigger. Connections that never set
// app.identity are the API's own, which applies the same rule before writing.
func (g ColumnGuard) SQL() string {
	changed := make([]string, len(g.Columns))
	for i, c := range g.Columns {
		changed[i] = fmt.Sprintf("NEW.%s IS DISTINCT FROM OLD.%s", c, c)
	}
	roles := make([]string, len(g.Roles))
	for i, r := range g.Roles {
		roles[i] = "'" + string(r) + "'"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE OR REPLACE FUNCTION %s() RETURNS trigger LANGUAGE plpgsql SET search_path = public AS $fn$\n", g.name())
	sb.WriteString("BEGIN\n")
	fmt.Fprintf(&sb, "    IF app_current_identity() IS NOT NULL AND app_current_role() NOT IN (%s) AND (%s) THEN\n",
		strings.Join(roles, ", "), strings.Join(changed, " OR "))
	fmt.Fprintf(&sb, "        RAISE EXCEPTION 'only %s may change %s on %s' USING ERRCODE = 'insufficient_privilege';\n",
		strings.Join(rolesPlain(g.Roles), ", "), strings.Join(g.Columns, ", "), g.Table)
	sb.WriteString("    END IF;\n    RETURN NEW;\nEND\n$fn$;\n")
	fmt.Fprintf(&sb, "DROP TRIGGER IF EXISTS %s ON %s;\n", g.name(), g.Table)
	fmt.Fprintf(&sb, "CREATE TRIGGER %s BEFORE UPDATE ON %s FOR EACH ROW EXECUTE FUNCTION %s();\n", g.name(), g.Table, g.name())
	return sb.String()
}

func rolesPlain(rs []Role) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}

// PostgresRLSScript renders an idempotent script that enables row-level security on every
// guarded table, (re)creates its policies and installs the column guards. Views are skipped.
func PostgresRLSScript() string {
	var sb strings.Builder
	for _, t := range Tables() {
		if t == TableMembershipReport {
			continue
		}
		fmt.Fprintf(&sb, "ALTER TABLE %s ENABLE ROW LEVEL SECURITY;\n", t)
	}
	for _, p := range PostgresPolicies() {
		if p.Table == TableMembershipReport {
			continue
		}
		fmt.Fprintf(&sb, "DROP POLICY IF EXISTS %s ON %s;\n", p.Name, p.Table)
		sb.WriteString(p.SQL())
		sb.WriteString("\n")
	}
	for _, g := range PostgresColumnGuards() {
		sb.WriteString(g.SQL())
	}
	return sb.String()
}
