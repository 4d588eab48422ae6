package schema

// IAMRoleTable represents the 'iam.role' table
type IAMRoleTable struct {
	Table       string
	ID          string
	Name        string
	DisplayName string
	Description string
	Permissions string
	Level       string
	IsActive    string
	IsSystem    string
	UserCount   string
	CreatedAt   string
	UpdatedAt   string
}

// IAMRole is the schema definition for iam.role
var IAMRole = IAMRoleTable{
	Table:       "iam.role",
	ID:          "id",
	Name:        "name",
	DisplayName: "displayname",
	Description: "description",
	Permissions: "permissions",
	Level:       "level",
	IsActive:    "isactive",
	IsSystem:    "issystem",
	UserCount:   "usercount",
	CreatedAt:   "createdat",
	UpdatedAt:   "updatedat",
}

// Columns returns all standard column names
func (t IAMRoleTable) Columns() []string {
	return []string{
		t.ID, t.Name, t.DisplayName, t.Description, t.Permissions, t.Level,
		t.IsActive, t.IsSystem, t.UserCount, t.CreatedAt, t.UpdatedAt,
	}
}
