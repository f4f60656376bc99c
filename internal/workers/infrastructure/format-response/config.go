// internal/workers/infrastructure/format-response/config.go
package formatresponse

type Config struct {
	AppVersion    string
	DefaultFormat Format
	Pretty        bool
}

func LoadConfig() *Config {
	return &Config{
		AppVersion:    "1.0.0",
		DefaultFormat: FormatJSON,
		Pretty:        true,
	}
}
