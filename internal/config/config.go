package config

type Config interface {
	EnvConfig
	SecurityConfig
	OAuthConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
}

type SecurityConfig interface {
	GetCryptKey() string
	GetSignKey() string
}

type OAuthConfig interface {
	GetAuthorizeURI() string
	GetAccessTokenURI() string
	GetRevokeURI() string
}

type mainConfig struct {
	EnvVars
	Security
	OAuth
}

func New() Config {
	initViper()
	return mainConfig{}
}
