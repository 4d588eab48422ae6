package schema

// IAMOAuthLinkTable represents the 'iam.oauthlink' table
type IAMOAuthLinkTable struct {
	Table        string
	ID           string
	UserID       string
	Provider     string
	ProviderID   string
	AccessToken  string
	RefreshToken string
	Profile      string
	Scopes       string
	IsActive     string
	LastSyncAt   string
	CreatedAt    string
	UpdatedAt    string
}

// IAMOAuthLink is the schema definition for iam.oauthlink
var IAMOAuthLink = IAMOAuthLinkTable{
	Table:        "iam.oauthlink",
	ID:           "id",
	UserID:       "userid",
	Provider:     "provider",
	ProviderID:   "providerid",
	AccessToken:  "accesstoken",
	RefreshToken: "refreshtoken",
	Profile:      "profile",
	Scopes:       "scopes",
	IsActive:     "isactive",
	LastSyncAt:   "lastsyncat",
	CreatedAt:    "createdat",
	UpdatedAt:    "updatedat",
}
