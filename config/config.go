// Package config provides configuration management for the paygate download gate.
// Configuration can be loaded from YAML files and overridden by environment variables.
package config

import (
	"fmt"
	"github.com/ilyakaznacheev/cleanenv"
	"strings"
	"sync"
	"time"
)

const (
	CheckoutBasic     = "Basic"
	CheckoutInContext = "InContext"
)

// Config holds all configuration for the gate.
// Values can be set via YAML configuration file or environment variables.
// Environment variables take precedence over YAML values.
type Config struct {
	IsDebug        bool `yaml:"is_debug" env:"DEBUG" env-default:"false"`
	DisablePayment bool `yaml:"disable_payment" env:"DISABLE_PAYMENT" env-default:"false"`
	Listen         struct {
		BindIP   string `yaml:"bind_ip" env:"BIND_IP" env-default:"0.0.0.0"`
		Port     string `yaml:"port" env:"PORT" env-default:"5100"`
		TLS      bool   `yaml:"tls_enabled" env:"TLS_ENABLED" env-default:"false"`
		CertFile string `yaml:"cert_file" env:"TLS_CERT_FILE" env-default:""`
		KeyFile  string `yaml:"key_file" env:"TLS_KEY_FILE" env-default:""`
	} `yaml:"listen"`
	Mongo struct {
		Enabled  bool   `yaml:"enabled" env:"MONGO_ENABLED" env-default:"false"`
		Host     string `yaml:"host" env:"MONGO_HOST" env-default:"127.0.0.1"`
		Port     string `yaml:"port" env:"MONGO_PORT" env-default:"27017"`
		User     string `yaml:"user" env:"MONGO_USER" env-default:""`
		Password string `yaml:"password" env:"MONGO_PASSWORD" env-default:""`
		Database string `yaml:"database" env:"MONGO_DATABASE" env-default:"paygate"`
	} `yaml:"mongo"`
	Catalog struct {
		Path     string `yaml:"path" env:"CATALOG_PATH" env-default:""`
		Currency string `yaml:"currency" env:"CURRENCY_CODE" env-default:"USD"`
	} `yaml:"catalog"`
	Provider struct {
		Endpoint  string        `yaml:"endpoint" env:"API_ENDPOINT" env-default:"https://api-3t.sandbox.paypal.com/nvp"`
		User      string        `yaml:"user" env:"API_USERNAME" env-default:""`
		Password  string        `yaml:"password" env:"API_PASSWORD" env-default:""`
		Signature string        `yaml:"signature" env:"API_SIGNATURE" env-default:""`
		Version   string        `yaml:"version" env:"API_VERSION" env-default:"109.0"`
		Timeout   time.Duration `yaml:"timeout" env:"API_TIMEOUT" env-default:"30s"`
	} `yaml:"provider"`
	Checkout struct {
		Type         string `yaml:"type" env:"EC_TYPE" env-default:"Basic"`
		WebUrl       string `yaml:"web_url" env:"EC_WEB_URL" env-default:"https://www.sandbox.paypal.com/cgi-bin/webscr?cmd=_express-checkout&token="`
		InContextUrl string `yaml:"in_context_url" env:"EC_INCONTEXT_URL" env-default:"https://www.sandbox.paypal.com/checkoutnow?token="`
		// PublicUrl is the externally visible origin used to build return and cancel URLs.
		// Derived from the request when empty.
		PublicUrl string `yaml:"public_url" env:"PUBLIC_URL" env-default:""`
	} `yaml:"checkout"`
	Files struct {
		Root        string `yaml:"root" env:"FILES_ROOT" env-default:""`
		ContentType string `yaml:"content_type" env:"FILES_CONTENT_TYPE" env-default:"application/pdf"`
	} `yaml:"files"`
}

var instance *Config
var once sync.Once

// GetConfig loads configuration from the specified YAML file path.
// Configuration values can be overridden by environment variables.
// This function uses a singleton pattern and only loads the config once.
//
// Example:
//
//	cfg, err := config.GetConfig("config.yml")
//	if err != nil {
//	    log.Fatal(err)
//	}
func GetConfig(path string) (*Config, error) {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("load config: %w; %s", err, desc)
			instance = nil
		}
	})
	return instance, err
}

// CheckoutUrl returns the redirect base selected by the checkout type, or an empty string
// if the type is unknown.
func (c *Config) CheckoutUrl() string {
	switch {
	case strings.EqualFold(c.Checkout.Type, CheckoutBasic):
		return c.Checkout.WebUrl
	case strings.EqualFold(c.Checkout.Type, CheckoutInContext):
		return c.Checkout.InContextUrl
	}
	return ""
}

// Missing lists the required values that are absent. An empty result means the gate can serve.
// Provider and checkout settings are not required while payment is disabled.
func (c *Config) Missing() []string {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	check("catalog.path", c.Catalog.Path)
	check("catalog.currency", c.Catalog.Currency)
	check("files.root", c.Files.Root)
	if c.DisablePayment {
		return missing
	}
	check("provider.endpoint", c.Provider.Endpoint)
	check("provider.user", c.Provider.User)
	check("provider.password", c.Provider.Password)
	check("provider.signature", c.Provider.Signature)
	check("provider.version", c.Provider.Version)
	if c.CheckoutUrl() == "" {
		missing = append(missing, "checkout.type/url")
	}
	return missing
}
