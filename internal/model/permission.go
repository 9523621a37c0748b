package model

// Permission is an atomic capability. Category only groups permissions in
// the admin screens; it plays no part in authorization.
type Permission struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// PermissionDef describes a catalogue entry before it has a database ID.
type PermissionDef struct {
	Name        string
	Description string
	Category    string
}

// Permission names follow the resource:action convention.
const (
	PermUserRead   = "user:read"
	PermUserCreate = "user:create"
	PermUserUpdate = "user:update"
	PermUserDelete = "user:delete"
	PermUserVerify = "user:verify"

	PermRoleRead   = "role:read"
	PermRoleCreate = "role:create"
	PermRoleUpdate = "role:update"
	PermRoleDelete = "role:delete"

	PermPermissionRead = "permission:read"

	PermCourseRead    = "course:read"
	PermCourseCreate  = "course:create"
	PermCourseUpdate  = "course:update"
	PermCourseDelete  = "course:delete"
	PermCoursePublish = "course:publish"

	PermCurriculumWrite  = "curriculum:write"
	PermCurriculumDelete = "curriculum:delete"

	PermQuizRead   = "quiz:read"
	PermQuizWrite  = "quiz:write"
	PermQuizDelete = "quiz:delete"
)

// Permission categories.
const (
	CategoryUsers      = "Users"
	CategoryRoles      = "Roles & Permissions"
	CategoryCourses    = "Courses"
	CategoryCurriculum = "Curriculum"
	CategoryQuizzes    = "Quizzes"
)

// Catalog is every permission the API checks. cmd/seed syncs it into the
// permissions table.
var Catalog = []PermissionDef{
	{PermUserRead, "View users", CategoryUsers},
	{PermUserCreate, "Create users", CategoryUsers},
	{PermUserUpdate, "Edit users and their role assignments", CategoryUsers},
	{PermUserDelete, "Delete users", CategoryUsers},
	{PermUserVerify, "Mark users as verified", CategoryUsers},

	{PermRoleRead, "View roles", CategoryRoles},
	{PermRoleCreate, "Create roles", CategoryRoles},
	{PermRoleUpdate, "Edit roles", CategoryRoles},
	{PermRoleDelete, "Delete roles", CategoryRoles},
	{PermPermissionRead, "View the permission catalogue", CategoryRoles},

	{PermCourseRead, "View courses and their curriculum", CategoryCourses},
	{PermCourseCreate, "Create courses", CategoryCourses},
	{PermCourseUpdate, "Edit courses", CategoryCourses},
	{PermCourseDelete, "Delete courses", CategoryCourses},
	{PermCoursePublish, "Publish and unpublish courses", CategoryCourses},

	{PermCurriculumWrite, "Create, edit and reorder sections, modules and lessons", CategoryCurriculum},
	{PermCurriculumDelete, "Delete sections, modules and lessons", CategoryCurriculum},

	{PermQuizRead, "View quizzes including answers", CategoryQuizzes},
	{PermQuizWrite, "Create and edit quizzes", CategoryQuizzes},
	{PermQuizDelete, "Delete quizzes", CategoryQuizzes},
}

// CatalogNames returns the names of every catalogue permission.
func CatalogNames() []string {
	names := make([]string, len(Catalog))
	for i, p := range Catalog {
		names[i] = p.Name
	}
	return names
}
