package config

// EnvPrefix namespaces every environment variable the terminal reads.
const EnvPrefix = "POSCORE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"
)
