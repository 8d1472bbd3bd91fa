// Package policy decides what each role may see and do. All functions are pure.
package policy

import (
	"slices"

	"github.com/tamir303/Afekaton2024/internal/model"
)

// Decision is the outcome of a policy check.
type Decision int

const (
	// Deny means the action is not permitted.
	Deny Decision = iota
	// Allow means the action is permitted.
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Action names a guarded capability.
type Action string

const (
	ActionReadInactive   Action = "object/read-inactive"
	ActionCreateInactive Action = "object/create-inactive"
	ActionListAll        Action = "object/list-all"
	ActionMutateGraph    Action = "graph/mutate"
	ActionBulkDelete     Action = "store/bulk-delete"
	ActionManageUsers    Action = "users/manage"
	ActionInvokeCommands Action = "commands/invoke"
	ActionReadCommands   Action = "commands/read"
	ActionManageSubjects Action = "subjects/manage"
)

var staff = []Action{
	ActionReadInactive,
	ActionCreateInactive,
	ActionMutateGraph,
	ActionInvokeCommands,
	ActionManageSubjects,
}

var grants = map[model.Role][]Action{
	model.RoleAdmin: append(slices.Clone(staff),
		ActionListAll,
		ActionBulkDelete,
		ActionManageUsers,
		ActionReadCommands,
	),
	model.RoleResearcher:  staff,
	model.RoleParticipant: nil,
}

// Check evaluates action for role. Unknown roles are denied everything.
func Check(role model.Role, action Action) Decision {
	if slices.Contains(grants[role], action) {
		return Allow
	}
	return Deny
}

// CanRead reports whether role may observe obj. Participants only see active objects.
func CanRead(role model.Role, obj *model.Object) bool {
	if obj == nil {
		return false
	}
	return obj.Active || Check(role, ActionReadInactive) == Allow
}

// CanMutateGraph covers bind, unbind and update.
func CanMutateGraph(role model.Role) bool { return Check(role, ActionMutateGraph) == Allow }

// CanBulkDelete is administrator only.
func CanBulkDelete(role model.Role) bool { return Check(role, ActionBulkDelete) == Allow }

// CanCreateInactive reports whether role may persist an inactive object.
func CanCreateInactive(role model.Role) bool { return Check(role, ActionCreateInactive) == Allow }

// CanListAll allows an unfiltered scan of every object.
func CanListAll(role model.Role) bool { return Check(role, ActionListAll) == Allow }

// CanManageUsers allows listing and deleting all users.
func CanManageUsers(role model.Role) bool { return Check(role, ActionManageUsers) == Allow }

// CanInvokeCommands allows invoking commands directly.
func CanInvokeCommands(role model.Role) bool { return Check(role, ActionInvokeCommands) == Allow }

// CanReadCommands allows reading and clearing the command log.
func CanReadCommands(role model.Role) bool { return Check(role, ActionReadCommands) == Allow }

// CanManageSubjects allows editing the subject catalog.
func CanManageSubjects(role model.Role) bool { return Check(role, ActionManageSubjects) == Allow }

// Filter keeps the objects role may read, preserving order.
func Filter(role model.Role, objs []*model.Object) []*model.Object {
	out := make([]*model.Object, 0, len(objs))
	for _, o := range objs {
		if CanRead(role, o) {
			out = append(out, o)
		}
	}
	return out
}
