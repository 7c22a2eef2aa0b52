package config

// EnvPrefix is passed to envconfig; tags spell out full variable names.
const EnvPrefix = "skillroads"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv = "SKILLROADS_APP_ENV"
	EnvPort   = "SKILLROADS_APP_PORT"

	EnvDBDSN  = "SKILLROADS_DB_DSN"
	EnvDBHost = "SKILLROADS_DB_HOST"
	EnvDBUser = "SKILLROADS_DB_USER"
	EnvDBName = "SKILLROADS_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
