package logging

import (
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StartupLogger collects process identity, resources, and feature flags, then
// emits one structured event summarising how the binary was configured.
type StartupLogger struct {
	name         string
	commitHash   string
	buildTime    string
	initDuration time.Duration

	s3Buckets    map[string]string
	dynamoTables map[string]string
	ssmParams    map[string]string
	providers    map[string]string
	features     map[string]bool
	config       map[string]string
}

// NewStartupLogger creates a StartupLogger for the named binary
// (e.g. "api-lambda", "api-local").
func NewStartupLogger(name string) *StartupLogger {
	return &StartupLogger{
		name:         name,
		s3Buckets:    make(map[string]string),
		dynamoTables: make(map[string]string),
		ssmParams:    make(map[string]string),
		providers:    make(map[string]string),
		features:     make(map[string]bool),
		config:       make(map[string]string),
	}
}

// CommitHash sets the git commit hash baked into the binary at build time.
func (s *StartupLogger) CommitHash(hash string) *StartupLogger {
	s.commitHash = hash
	return s
}

// BuildTime sets the UTC build timestamp baked into the binary.
func (s *StartupLogger) BuildTime(t string) *StartupLogger {
	s.buildTime = t
	return s
}

// S3Bucket registers an S3 bucket.
func (s *StartupLogger) S3Bucket(label, name string) *StartupLogger {
	s.s3Buckets[label] = name
	return s
}

// DynamoTable registers a DynamoDB table.
func (s *StartupLogger) DynamoTable(label, name string) *StartupLogger {
	s.dynamoTables[label] = name
	return s
}

// SSMParam registers an SSM parameter path. Only the path is logged, never the value.
func (s *StartupLogger) SSMParam(label, path string) *StartupLogger {
	s.ssmParams[label] = path
	return s
}

// Provider registers an image or text generation backend and its model.
func (s *StartupLogger) Provider(label, model string) *StartupLogger {
	s.providers[label] = model
	return s
}

// Feature registers a boolean feature flag (e.g. "auth", "originVerify").
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config registers a non-sensitive configuration key-value pair.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.config[key] = value
	return s
}

// InitDuration records how long initialisation took.
func (s *StartupLogger) InitDuration(d time.Duration) *StartupLogger {
	s.initDuration = d
	return s
}

// Log emits one INFO event with everything collected. On Lambda the process
// section carries the function identity; elsewhere it carries host and pid.
func (s *StartupLogger) Log() {
	process := zerolog.Dict().
		Str("name", s.name).
		Str("goVersion", runtime.Version()).
		Str("arch", runtime.GOARCH).
		Str("logLevel", ParseLevel(os.Getenv(LevelEnv)).String())
	if onLambda() {
		process = process.
			Str("functionName", os.Getenv("AWS_LAMBDA_FUNCTION_NAME")).
			Str("version", os.Getenv("AWS_LAMBDA_FUNCTION_VERSION")).
			Str("region", os.Getenv("AWS_REGION")).
			Str("memoryMB", os.Getenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE"))
	} else {
		host, _ := os.Hostname()
		process = process.Str("host", host).Int("pid", os.Getpid())
	}
	if s.commitHash != "" {
		process = process.Str("commitHash", s.commitHash)
	}
	if s.buildTime != "" {
		process = process.Str("buildTime", s.buildTime)
	}

	evt := log.Info().Dict("process", process)

	resources := zerolog.Dict()
	n := 0
	for _, group := range []struct {
		key string
		m   map[string]string
	}{
		{"providers", s.providers},
		{"s3Buckets", s.s3Buckets},
		{"dynamoTables", s.dynamoTables},
		{"ssmParams", s.ssmParams},
	} {
		if len(group.m) > 0 {
			resources = resources.Dict(group.key, dictFromMap(group.m))
			n++
		}
	}
	if n > 0 {
		evt = evt.Dict("resources", resources)
	}

	if len(s.features) > 0 {
		features := zerolog.Dict()
		for k, v := range s.features {
			features = features.Bool(k, v)
		}
		evt = evt.Dict("features", features)
	}
	if len(s.config) > 0 {
		evt = evt.Dict("config", dictFromMap(s.config))
	}
	if s.initDuration > 0 {
		evt = evt.Dur("initDuration", s.initDuration)
	}
	evt.Msg("Startup complete")
}

func dictFromMap(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for k, v := range m {
		d = d.Str(k, v)
	}
	return d
}
