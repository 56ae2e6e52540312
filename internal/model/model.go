// Package model defines the shared data entities persisted by the
// store and passed between subsystems.
package model

// ScanTaskStatus is the closed set of running-status labels a ScanTask
// may carry. Exactly one value applies at any observable moment.
type ScanTaskStatus string

const (
	StatusWait             ScanTaskStatus = "wait"
	StatusCollectingDomain ScanTaskStatus = "collecting-domains"
	StatusCollectingIPs    ScanTaskStatus = "collecting-ips"
	StatusScanningPorts    ScanTaskStatus = "scanning-ports"
	StatusScanningWebsites ScanTaskStatus = "scanning-websites"
	StatusScanningRisks    ScanTaskStatus = "scanning-risks"
)

// ScanTask is the unit the Orchestrator schedules and drives.
type ScanTask struct {
	ID             int64
	Name           string
	MonitorEnabled bool
	RunningStatus  ScanTaskStatus
	NextRunTime    int64
	LastRunTime    int64
	CreatedAt      int64
	UpdatedAt      int64
}

// RootDomain is a user-declared second-level domain owned by a ScanTask.
type RootDomain struct {
	ID        int64
	TaskID    int64
	Domain    string
	TaskName  string
	CreatedAt int64
	UpdatedAt int64
}

// Domain is a discovered subdomain. DNS record fields are JSON-encoded
// lists (or nil) at the store boundary; here they are plain slices.
type Domain struct {
	ID        int64
	TaskID    int64
	Domain    string
	SourceTag string
	A         []string
	CNAME     []string
	NS        []string
	MX        []string
	CreatedAt int64
	UpdatedAt int64
}

// IP is a resolved address, optionally back-referencing the Domain it
// came from.
type IP struct {
	ID        int64
	TaskID    int64
	IPAddr    string
	DomainID  *int64
	PortCount int
	CreatedAt int64
	UpdatedAt int64
}

// Port is an open port discovered on an IP.
type Port struct {
	ID        int64
	IPID      int64
	TaskID    int64
	Port      int
	Service   string
	Version   string
	CreatedAt int64
	UpdatedAt int64
}

// Website is a probed HTTP(S) endpoint.
type Website struct {
	ID           int64
	TaskID       int64
	URL          string
	BaseURL      string
	FaviconHash  string
	Title        string
	StatusCode   int
	Headers      map[string]string
	Fingerprints []string
	Screenshot   string // base64
	Tags         []string
	SSLInfo      string
	CreatedAt    int64
	UpdatedAt    int64
}

// APIHandleStatus is the triage state of a discovered API endpoint.
type APIHandleStatus string

const (
	APIUntriaged APIHandleStatus = "untriaged"
	APITriaged   APIHandleStatus = "triaged"
	APIIgnored   APIHandleStatus = "ignored"
)

// MaxCapturedBodyBytes is the cap on GET/POST response capture.
const MaxCapturedBodyBytes = 10240

// API is a discovered endpoint, with bounded-size probe captures.
type API struct {
	ID             int64
	TaskID         int64
	Method         string
	URI            string
	URL            string
	UFrom          string
	HTTPStatus     int
	HandleStatus   APIHandleStatus
	GetResponse    string
	PostResponse   string
	GetBodyLength  int
	PostBodyLength int
	CreatedAt      int64
	UpdatedAt      int64
}

// WebComponent is a fingerprinted technology on a Website.
type WebComponent struct {
	ID         int64
	TaskID     int64
	Website    string
	CompName   string
	CompVer    string
	CType      string
	Category   string
	Confidence int
	CreatedAt  int64
}

// RiskLevel is the closed severity enum for Risk rows.
type RiskLevel string

const (
	RiskCritical RiskLevel = "critical"
	RiskHigh     RiskLevel = "high"
	RiskMedium   RiskLevel = "medium"
	RiskLow      RiskLevel = "low"
	RiskInfo     RiskLevel = "info"
)

// RiskStatus is the closed triage-status enum for Risk rows.
type RiskStatus string

const (
	RiskOpen         RiskStatus = "open"
	RiskAcknowledged RiskStatus = "acknowledged"
	RiskClosed       RiskStatus = "closed"
)

// Risk is a persisted finding from any scanner.
type Risk struct {
	ID              int64
	TaskID          int64
	RiskName        string
	RiskType        string
	Level           RiskLevel
	Status          RiskStatus
	Detail          string
	ResponseSnippet string
	SourceTag       string
	CreatedAt       int64
	UpdatedAt       int64
}

// Regex is a named, enable-able detection pattern (sensitive-data class).
type Regex struct {
	ID      int64
	Name    string
	Pattern string
	Kind    string
	Enabled bool
}

// PluginType is the closed family enum for Plugin rows.
type PluginType string

const (
	PluginDNSCollection PluginType = "dns_collection"
	PluginPortScan      PluginType = "port_scan"
	PluginFingerprint   PluginType = "fingerprint"
	PluginVulnerability PluginType = "vulnerability"
)

// PluginStatus toggles whether a plugin participates in runs.
type PluginStatus string

const (
	PluginEnabled  PluginStatus = "enabled"
	PluginDisabled PluginStatus = "disabled"
)

// PluginParam describes one configurable input a plugin accepts.
type PluginParam struct {
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Default     string   `json:"default,omitempty"`
	Description string   `json:"description,omitempty"`
	Options     []string `json:"options,omitempty"`
}

// Plugin is the manifest + script for one user-authored scanner.
// Logical key is (Type, Name); ID mirrors the on-disk/DB row.
type Plugin struct {
	ID            int64
	Name          string
	Type          PluginType
	Version       string
	Description   string
	Author        string
	Severity      string
	References    []string
	Params        []PluginParam
	ResultFields  []string
	Script        string
	Status        PluginStatus
	CreatedAt     int64
	UpdatedAt     int64
}

// HeaderPair is one entry of the CoreConfig http_headers list.
type HeaderPair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CoreConfig is the single-row ASM configuration.
type CoreConfig struct {
	DNSBruteEnabled        bool
	DNSPluginEnabled       bool
	PortScanPluginEnabled  bool
	FingerprintPluginEnabled bool
	RiskScanPluginEnabled  bool
	Proxy                  string
	UserAgent              string
	HTTPHeaders            []HeaderPair
	HTTPTimeout            int
	ThreadNum              int
	SubdomainDict          string
	FileDict               string
	SubdomainLevel         int // one of 3, 4, 5
	IsBuiltin              bool
}

// DefaultCoreConfig returns sane defaults for a freshly initialized store.
func DefaultCoreConfig() CoreConfig {
	return CoreConfig{
		DNSBruteEnabled:          true,
		DNSPluginEnabled:         true,
		PortScanPluginEnabled:    true,
		FingerprintPluginEnabled: true,
		RiskScanPluginEnabled:    true,
		UserAgent:                "Mozilla/5.0 (compatible; RShield/1.0)",
		HTTPTimeout:              10,
		ThreadNum:                10,
		SubdomainLevel:           3,
		IsBuiltin:                true,
	}
}

// MaxRequestHistory bounds the ProxyRequestRecord FIFO (spec §3/§8).
const MaxRequestHistory = 1000

// ProxyRequestRecord is one entry of the bounded proxy history.
type ProxyRequestRecord struct {
	ID              string
	Method          string
	Host            string
	Path            string
	URL             string
	Status          int
	TimestampMillis int64
	RequestHeaders  map[string]string
	RequestBody     string
	ResponseHeaders map[string]string
	ResponseBody    string
}

// InterceptedRequest is a pending request-gate decision.
type InterceptedRequest struct {
	ID      string
	Method  string
	URL     string
	Headers map[string]string
	Body    string
}

// InterceptedResponse is a pending response-gate decision.
type InterceptedResponse struct {
	ID              string
	RelatedRequestID string
	Status          int
	Headers         map[string]string
	Body            string
}

// BruteForceProtocol is the closed protocol enum for BruteForceTask.
type BruteForceProtocol string

const (
	ProtoSSH        BruteForceProtocol = "SSH"
	ProtoSMB        BruteForceProtocol = "SMB"
	ProtoRDP        BruteForceProtocol = "RDP"
	ProtoMySQL      BruteForceProtocol = "MySQL"
	ProtoMSSQL      BruteForceProtocol = "MSSQL"
	ProtoRedis      BruteForceProtocol = "Redis"
	ProtoPostgreSQL BruteForceProtocol = "PostgreSQL"
	ProtoOracle     BruteForceProtocol = "Oracle"
	ProtoFTP        BruteForceProtocol = "FTP"
	ProtoTelnet     BruteForceProtocol = "Telnet"
)

// BruteForceStatus is the closed status enum for BruteForceTask.
type BruteForceStatus string

const (
	BruteForcePending   BruteForceStatus = "pending"
	BruteForceRunning   BruteForceStatus = "running"
	BruteForceCompleted BruteForceStatus = "completed"
	BruteForceFailed    BruteForceStatus = "failed"
	BruteForceStopped   BruteForceStatus = "stopped"
)

// BruteForceTask is a credentialed-login attempt campaign.
type BruteForceTask struct {
	ID        int64
	Name      string
	Target    string
	Port      int
	Protocol  BruteForceProtocol
	Usernames []string
	Passwords []string
	Threads   int
	Timeout   int
	CreatedAt int64
	Status    BruteForceStatus
}

// BruteForceResult records one successful credential pair. Failures
// are never persisted (spec §8).
type BruteForceResult struct {
	TaskID       int64
	Target       string
	Protocol     BruteForceProtocol
	Username     string
	Password     string
	Success      bool
	TimeTakenMs  int64
	CreatedAt    int64
}
