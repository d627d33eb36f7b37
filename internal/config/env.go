package config

import "github.com/joho/godotenv"

// LoadEnv loads a .env file from the working directory into the process
// environment. Variables that are already set are left untouched.
// The returned error satisfies os.IsNotExist when there is no .env file.
func LoadEnv() error {
	return godotenv.Load()
}
