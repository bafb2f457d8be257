package types

// PingResponse is the body of /info/ping.
type PingResponse struct {
	// Ping is true when the model server answered the version probe.
	Ping          bool       `json:"ping"`
	ProxyVersion  string     `json:"proxy_version"`
	OllamaVersion string     `json:"ollama_version"`
	User          PingUser   `json:"user"`
	Config        PingConfig `json:"config"`
}

// PingUser describes the caller as resolved from its token.
type PingUser struct {
	UserType string `json:"user_type"`
	UserName string `json:"user_name"`

	// Token is masked; only its first characters are shown.
	Token string `json:"token"`
}

// PingConfig is the public subset of the proxy configuration.
type PingConfig struct {
	BaseURL         string `json:"base_url"`
	Host            string `json:"host"`
	Port            int    `json:"port"`
	LANIP           string `json:"lan_ip"`
	CORSPolicy      string `json:"cors_policy"`
	AnonymousAccess bool   `json:"anonymous_access"`
	LogLevel        string `json:"log_level"`
}

// ProcessList is the upstream api/ps body. Models are kept as generic maps
// so fields the proxy does not know about are relayed unchanged.
type ProcessList struct {
	Models []map[string]any `json:"models"`
}
