package config

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "PAYMENTS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)
