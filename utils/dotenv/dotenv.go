package dotenv

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnvs loads .env then an environment specific override such as
// .env.production, if present. Missing files are not an error so that
// containerized deployments can rely on real environment variables only.
func LoadDotEnvs() error {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return err
		}
	}

	env := os.Getenv("SPARK_ENV")
	if env == "" {
		return nil
	}
	override := ".env." + env
	if _, err := os.Stat(override); err == nil {
		return godotenv.Overload(override)
	}
	return nil
}
