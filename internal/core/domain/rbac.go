package domain

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEditor   Role = "editor"
	RoleReviewer Role = "reviewer"
	RoleGuest    Role = "guest"
)

type Resource string

const (
	ResourceManuscripts Resource = "manuscripts"
	ResourceReviewers   Resource = "reviewers"
	ResourceInvitations Resource = "invitations"
	ResourceReviews     Resource = "reviews"
	ResourceDashboard   Resource = "dashboard"
	resourceAny         Resource = "*"
)

type AccessAction string

const (
	AccessRead   AccessAction = "read"
	AccessCreate AccessAction = "create"
	AccessUpdate AccessAction = "update"
	AccessDelete AccessAction = "delete"
	accessAny    AccessAction = "*"
)

type permission struct {
	resource Resource
	actions  []AccessAction
}

var rolePermissions = map[Role][]permission{
	RoleEditor: {
		{resource: ResourceManuscripts, actions: []AccessAction{AccessRead, AccessCreate, AccessUpdate, AccessDelete}},
		{resource: ResourceReviewers, actions: []AccessAction{AccessRead, AccessCreate, AccessUpdate}},
		{resource: ResourceInvitations, actions: []AccessAction{AccessRead, AccessCreate, AccessUpdate, AccessDelete}},
		{resource: ResourceDashboard, actions: []AccessAction{AccessRead}},
	},
	RoleReviewer: {
		{resource: ResourceManuscripts, actions: []AccessAction{AccessRead}},
		{resource: ResourceInvitations, actions: []AccessAction{AccessRead, AccessUpdate}},
		{resource: ResourceReviews, actions: []AccessAction{AccessRead, AccessCreate, AccessUpdate}},
	},
	RoleAdmin: {
		{resource: resourceAny, actions: []AccessAction{accessAny}},
	},
	RoleGuest: {
		{resource: ResourceManuscripts, actions: []AccessAction{AccessRead}},
		{resource: ResourceDashboard, actions: []AccessAction{AccessRead}},
	},
}

func (r Role) Valid() bool {
	_, ok := rolePermissions[r]
	return ok
}

// HasPermission checks the static role table. Unknown roles have no rights.
func HasPermission(role Role, resource Resource, action AccessAction) bool {
	perms, ok := rolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p.resource != resourceAny && p.resource != resource {
			continue
		}
		for _, a := range p.actions {
			if a == accessAny || a == action {
				return true
			}
		}
	}
	return false
}
