// Package config loads service configuration with viper.
//
// A config.yml is searched for in the usual places (./cmd/<service>/,
// ./config/, the working directory), a .env file is loaded into the
// environment with godotenv, and environment variables override any key
// the target struct declares.
//
//	var cfg AppConfig
//	err := config.LoadConfig("streamkitd", &cfg, config.WithEnvPrefix("STREAMKIT"))
package config
