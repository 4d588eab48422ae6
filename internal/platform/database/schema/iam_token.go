package schema

// IAMTokenTable represents the 'iam.token' table
type IAMTokenTable struct {
	Table         string
	ID            string
	UserID        string
	TokenHash     string
	Type          string
	ExpiresAt     string
	IsRevoked     string
	RevokedAt     string
	RevokedReason string
	IPAddress     string
	UserAgent     string
	Browser       string
	OS            string
	DeviceClass   string
	LastUsedAt    string
	CreatedAt     string
}

// IAMToken is the schema definition for iam.token
var IAMToken = IAMTokenTable{
	Table:         "iam.token",
	ID:            "id",
	UserID:        "userid",
	TokenHash:     "tokenhash",
	Type:          "type",
	ExpiresAt:     "expiresat",
	IsRevoked:     "isrevoked",
	RevokedAt:     "revokedat",
	RevokedReason: "revokedreason",
	IPAddress:     "ipaddress",
	UserAgent:     "useragent",
	Browser:       "browser",
	OS:            "os",
	DeviceClass:   "deviceclass",
	LastUsedAt:    "lastusedat",
	CreatedAt:     "createdat",
}

// Columns returns all standard column names
func (t IAMTokenTable) Columns() []string {
	return []string{
		t.ID, t.UserID, t.TokenHash, t.Type, t.ExpiresAt, t.IsRevoked, t.RevokedAt,
		t.RevokedReason, t.IPAddress, t.UserAgent, t.Browser, t.OS, t.DeviceClass,
		t.LastUsedAt, t.CreatedAt,
	}
}
