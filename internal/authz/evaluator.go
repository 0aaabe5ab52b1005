package authz

// HasPermission reports whether role may perform action on resource.
// Unknown roles, resources and actions are denied.
func HasPermission(role Role, resource Resource, action Action) bool {
	return GetResourceActions(role, resource).Has(action)
}

// CanAccessResource reports whether role holds any action on resource.
func CanAccessResource(role Role, resource Resource) bool {
	return !GetResourceActions(role, resource).Empty()
}

// GetResourceActions returns the actions role may perform on resource (empty if none).
func GetResourceActions(role Role, resource Resource) ActionSet {
	byResource, ok := grants[role]
	if !ok {
		return 0
	}
	return byResource[resource]
}

// Capabilities lists every resource role can access together with its actions.
func Capabilities(role Role) map[Resource][]Action {
	out := make(map[Resource][]Action)
	for _, res := range allResources {
		set := GetResourceActions(role, res)
		if set.Empty() {
			continue
		}
		out[res] = set.Actions()
	}
	return out
}
