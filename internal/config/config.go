// Package config loads the YAML configuration files for the Server and
// Agent processes: one config struct per process, parsed with
// gopkg.in/yaml.v3.
package config

// ServerConfig is the control plane Server process's configuration file
// structure: trust domain, key/JWT lifetimes, HTTP listen addresses, the
// Key Store backend, and the PSAT Node Attestor's policy.
type ServerConfig struct {
	TrustDomain string `yaml:"trust_domain"`

	// KeyTTLSeconds / JWTTTLSeconds / RefreshHintSeconds are the Key
	// Manager's and SVID Factory's configured lifetimes.
	KeyTTLSeconds     int64 `yaml:"key_ttl_seconds"`
	JWTTTLSeconds     int64 `yaml:"jwt_ttl_seconds"`
	RefreshHintSeconds int64 `yaml:"refresh_hint_seconds"`

	HTTP struct {
		AdminSocketPath string `yaml:"admin_socket_path"`
		AgentListenAddr string `yaml:"agent_listen_addr"`
	} `yaml:"http"`

	KeyStore struct {
		// Backend selects the Key Store implementation: "memory" or "disk".
		Backend string `yaml:"backend"`
		// DiskBasePath is the PKCS8-PEM directory, used only when Backend == "disk".
		DiskBasePath string `yaml:"disk_base_path"`
	} `yaml:"key_store"`

	PSAT struct {
		Audience                string   `yaml:"audience"`
		Namespace               string   `yaml:"namespace"`
		ServiceAccountAllowList []string `yaml:"service_account_allow_list"`
		ClusterName             string   `yaml:"cluster_name"`
		AllowedNodeLabelKeys    []string `yaml:"allowed_node_label_keys"`
		AllowedPodLabelKeys     []string `yaml:"allowed_pod_label_keys"`
	} `yaml:"psat"`
}

// AgentConfig is the Agent process's configuration file structure: where
// to reach the Server, the local Workload-API socket, and the refresh/
// retry parameters for the Trust-Bundle Manager.
type AgentConfig struct {
	TrustDomain string `yaml:"trust_domain"`

	Server struct {
		Address string `yaml:"address"`
		// RequestTimeoutSeconds bounds every outbound Server↔Agent call.
		RequestTimeoutSeconds int64 `yaml:"request_timeout_seconds"`
	} `yaml:"server"`

	AttestationTokenPath string `yaml:"attestation_token_path"`

	WorkloadAPI struct {
		SocketPath string `yaml:"socket_path"`
	} `yaml:"workload_api"`

	TrustBundle struct {
		InitMaxRetry       uint64 `yaml:"init_max_retry"`
		InitWaitRetrySecs  int64  `yaml:"init_wait_retry_seconds"`
	} `yaml:"trust_bundle"`

	WorkloadAttestor struct {
		NodeName             string `yaml:"node_name"`
		MaxPollAttempt       int    `yaml:"max_poll_attempt"`
		PollRetryIntervalMs  int64  `yaml:"poll_retry_interval_ms"`
	} `yaml:"workload_attestor"`
}
