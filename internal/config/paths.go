package config

import "path/filepath"

// Everything deskbot owns lives under home (~/.deskbot or DESKBOT_HOME).

// Home returns the deskbot root directory (ResolveHome()).
func Home() string {
	return ResolveHome()
}

// EnvFile returns the dotenv file loaded before the config, fixed at home/.env.
func EnvFile() string {
	return filepath.Join(Home(), ".env")
}

// DataDir returns the data directory, fixed at home/data.
func DataDir() string {
	return filepath.Join(Home(), "data")
}

// LogsDir returns the log directory, fixed at home/logs.
func LogsDir() string {
	return filepath.Join(Home(), "logs")
}
