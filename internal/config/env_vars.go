package config

import (
	"fmt"

	"github.com/spf13/viper"
)

const (
	portKey           = "port"
	appNameKey        = "app_name"
	cryptKeyKey       = "crypt_key"
	signKeyKey        = "sign_key"
	authorizeURIKey   = "authorize_uri"
	accessTokenURIKey = "access_token_uri"
	revokeURIKey      = "revoke_uri"
)

func initViper() {
	viper.SetEnvPrefix("oauth2")
	viper.AutomaticEnv()

	viper.SetDefault(portKey, "8080")
	viper.SetDefault(appNameKey, "OAuth2 Provider")
	viper.SetDefault(authorizeURIKey, "/oauth/authorize")
	viper.SetDefault(accessTokenURIKey, "/oauth/access_token")
	viper.SetDefault(revokeURIKey, "/oauth/revoke")
}

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := viper.GetString(portKey)
	if len(port) > 0 && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return viper.GetString(appNameKey)
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetCryptKey returns the token encryption secret (OAUTH2_CRYPT_KEY).
func (Security) GetCryptKey() string {
	return viper.GetString(cryptKeyKey)
}

// GetSignKey returns the token signing secret (OAUTH2_SIGN_KEY).
func (Security) GetSignKey() string {
	return viper.GetString(signKeyKey)
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetAuthorizeURI() string {
	return viper.GetString(authorizeURIKey)
}

func (OAuth) GetAccessTokenURI() string {
	return viper.GetString(accessTokenURIKey)
}

func (OAuth) GetRevokeURI() string {
	return viper.GetString(revokeURIKey)
}
