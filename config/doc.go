// Package config loads wirekit configuration.
//
// Values come, lowest priority first, from defaults, a wirekit.yaml file,
// a .env file, WIREKIT_* environment variables and changed command-line
// flags. Viper does the layering; godotenv loads the .env file.
//
//	cfg, err := config.Load(config.WithConfigFile("wirekit.yaml"), config.WithFlags(fs, bindings))
//
// Nested keys map to environment variables with underscores, so
// WIREKIT_SERVER_PORT sets server.port and WIREKIT_LOGGING_LEVEL sets
// logging.level.
package config
