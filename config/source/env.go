package source

import (
	"context"
	"os"
	"strings"

	"github.com/skekre98/chatlog/config"
)

// ENV_PREFIX is the required prefix for environment variables.
const ENV_PREFIX = "CHATLOG_"

// EnvSource loads CHATLOG_-prefixed environment variables. The rest of the
// name is lowercased and split on underscores into nested keys:
//
//	CHATLOG_SERVER_PORT=9000          -> {server: {port: "9000"}}
//	CHATLOG_AUTH_JWTSECRET=...        -> {auth: {jwtsecret: "..."}}
//	CHATLOG_POSTGRES_MAXCONNS=20      -> {postgres: {maxconns: "20"}}
//
// camelCase keys are written without separators; matching against struct
// tags is case-insensitive. When a leaf and a nested key collide
// (CHATLOG_DB and CHATLOG_DB_HOST) the first one seen wins.
type EnvSource struct {
	// Environ replaces os.Environ, mostly for tests.
	Environ func() []string
}

func (e *EnvSource) Name() string { return "env" }

func (e *EnvSource) Load(ctx context.Context) (map[string]any, error) {
	environ := os.Environ
	if e.Environ != nil {
		environ = e.Environ
	}
	return loadEnvVars(environ()), nil
}

// Watch is a no-op: the environment is fixed for the process lifetime.
func (e *EnvSource) Watch(ctx context.Context, ch chan<- config.Event) error {
	return nil
}

func loadEnvVars(environ []string) map[string]any {
	result := make(map[string]any)
	for _, env := range environ {
		key, value, found := strings.Cut(env, "=")
		if !found || !strings.HasPrefix(key, ENV_PREFIX) {
			continue
		}
		key = strings.ToLower(strings.TrimPrefix(key, ENV_PREFIX))
		setNestedValue(result, strings.Split(key, "_"), value)
	}
	return result
}

func setNestedValue(m map[string]any, segments []string, value string) {
	current := m

	for i, segment := range segments {
		if segment == "" {
			continue
		}

		if i == len(segments)-1 {
			current[segment] = value
			return
		}

		if existing, exists := current[segment]; exists {
			nested, ok := existing.(map[string]any)
			if !ok {
				// a leaf already lives at this path
				return
			}
			current = nested
		} else {
			nested := make(map[string]any)
			current[segment] = nested
			current = nested
		}
	}
}
