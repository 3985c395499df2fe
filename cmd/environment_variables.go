package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
)

const (
	EnvironmentVariablePrefix = "QUOTAKV_"
)

// SetFlagsFromEnvVariables sets each flag not given on the command line from
// an env variable named after it, e.g. --log-format from QUOTAKV_LOG_FORMAT.
func SetFlagsFromEnvVariables(fs *pflag.FlagSet) error {
	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		envVar := flagToEnvVarName(f)
		if val, present := os.LookupEnv(envVar); present {
			if err := fs.Set(f.Name, val); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", envVar, err))
			}
		}
	})
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func flagToEnvVarName(f *pflag.Flag) string {
	return fmt.Sprintf("%s%s", EnvironmentVariablePrefix, strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_"))
}
