package config

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/subosito/gotenv"
)

// DotEnvTryLoad forcefully overrides ENV variables through **a maybe available** .env file.
//
// This function always logs a warning if the file cannot be found or parsed.
// This mechanism should only be used locally and during testing; production
// configuration comes from the ENV.
func DotEnvTryLoad(absolutePathToEnvFile string, overrideEnvFunc func(key string, value string) error) {
	err := DotEnvLoad(absolutePathToEnvFile, overrideEnvFunc)
	if err != nil {
		log.Warn().Err(err).Str("envFile", absolutePathToEnvFile).Msg(".env could not be loaded")
	}
}

// DotEnvLoad forcefully overrides ENV variables through the supplied .env file.
func DotEnvLoad(absolutePathToEnvFile string, overrideEnvFunc func(key string, value string) error) error {
	file, err := os.Open(absolutePathToEnvFile)
	if err != nil {
		return err
	}
	defer file.Close()

	envs, err := gotenv.StrictParse(file)
	if err != nil {
		return err
	}

	for key, value := range envs {
		if err := overrideEnvFunc(key, value); err != nil {
			return err
		}
	}

	return nil
}
