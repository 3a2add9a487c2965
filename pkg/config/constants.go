package config

const (
	// EnvPrefix is unused by envconfig lookups (tags carry the full
	// variable names) but kept for Process's prefix argument.
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "RELAY_DB_DSN"
	EnvDBHost = "RELAY_DB_HOST"
	EnvDBUser = "RELAY_DB_USER"
	EnvDBName = "RELAY_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
