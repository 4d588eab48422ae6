package schema

// IAMAccountTable represents the 'iam.account' table
type IAMAccountTable struct {
	Table                 string
	ID                    string
	FirstName             string
	LastName              string
	Email                 string
	PasswordHash          string
	RoleID                string
	Provider              string
	LinkedProviders       string
	IsVerified            string
	VerificationTokenHash string
	VerificationExpiresAt string
	ResetTokenHash        string
	ResetExpiresAt        string
	IsActive              string
	IsLocked              string
	LockUntil             string
	LoginAttempts         string
	LastLoginAt           string
	PasswordChangedAt     string
	Preferences           string
	CreatedAt             string
	UpdatedAt             string
}

// IAMAccount is the schema definition for iam.account
var IAMAccount = IAMAccountTable{
	Table:                 "iam.account",
	ID:                    "id",
	FirstName:             "firstname",
	LastName:              "lastname",
	Email:                 "email",
	PasswordHash:          "passwordhash",
	RoleID:                "roleid",
	Provider:              "provider",
	LinkedProviders:       "linkedproviders",
	IsVerified:            "isverified",
	VerificationTokenHash: "verificationtokenhash",
	VerificationExpiresAt: "verificationexpiresat",
	ResetTokenHash:        "resettokenhash",
	ResetExpiresAt:        "resetexpiresat",
	IsActive:              "isactive",
	IsLocked:              "islocked",
	LockUntil:             "lockuntil",
	LoginAttempts:         "loginattempts",
	LastLoginAt:           "lastloginat",
	PasswordChangedAt:     "passwordchangedat",
	Preferences:           "preferences",
	CreatedAt:             "createdat",
	UpdatedAt:             "updatedat",
}

// Columns returns all standard column names
func (t IAMAccountTable) Columns() []string {
	return []string{
		t.ID, t.FirstName, t.LastName, t.Email, t.PasswordHash, t.RoleID, t.Provider,
		t.LinkedProviders, t.IsVerified, t.VerificationTokenHash, t.VerificationExpiresAt,
		t.ResetTokenHash, t.ResetExpiresAt, t.IsActive, t.IsLocked, t.LockUntil,
		t.LoginAttempts, t.LastLoginAt, t.PasswordChangedAt, t.Preferences,
		t.CreatedAt, t.UpdatedAt,
	}
}
