// Package core holds the domain types shared across the ingestion and
// retrieval core: organizations, collections, source connections,
// credentials, syncs, entities, and the access-control shapes attached to
// them. It has no framework dependency — no HTTP, no SQL — so every other
// package can import it without pulling in a storage or transport stack.
package core

import "time"

// Organization is the tenant boundary. Collections, Source Connections, and
// Credentials are all owned by exactly one Organization.
type Organization struct {
	ID           string
	Name         string
	FeatureFlags map[string]bool
}

// HasFlag reports whether the organization has the named feature flag
// enabled. A missing flag is treated as disabled.
func (o Organization) HasFlag(name string) bool {
	if o.FeatureFlags == nil {
		return false
	}
	return o.FeatureFlags[name]
}

// Collection is the logical namespace for search: one destination vector
// store collection, with an immutable dimensionality fixed at creation.
type Collection struct {
	ID             string
	ReadableID     string
	Name           string
	VectorSize     int
	OrganizationID string
}

// AuthMethod tags how a Source Connection authenticates.
type AuthMethod string

const (
	AuthDirect       AuthMethod = "direct"
	AuthOAuthBrowser AuthMethod = "oauth_browser"
	AuthOAuthToken   AuthMethod = "oauth_token"
	AuthOAuthBYOC    AuthMethod = "oauth_byoc"
	AuthProvider     AuthMethod = "auth_provider"
)

// ConnectionState is a node of the Source Connection lifecycle state
// machine (spec.md §4.1).
type ConnectionState string

const (
	StateCreating    ConnectionState = "creating"
	StatePendingAuth ConnectionState = "pending_auth"
	StateAuthed      ConnectionState = "authenticated"
	StateScheduled   ConnectionState = "scheduled"
	StateRunning     ConnectionState = "running"
	StateExpired     ConnectionState = "expired"
	StateDeleted     ConnectionState = "deleted"
)

// SourceConnection binds a Collection to one external system.
type SourceConnection struct {
	ID                    string
	OrganizationID        string
	CollectionReadableID  string
	ShortName             string
	Name                  string
	Description           string
	AuthMethod            AuthMethod
	IsAuthenticated       bool
	State                 ConnectionState
	Config                map[string]any
	CredentialID          *string
	SyncID                *string
	CronSchedule          *string
	Cursor                []byte // opaque per-source JSON, driver-owned
	ReadableAuthProviderID *string
	AuthProviderConfig    map[string]any
	ConnectionInitSessionID *string
	CreatedAt             time.Time
	UpdatedAt              time.Time
}

// IntegrationCredential is an opaque encrypted blob plus metadata, owned by
// exactly one Source Connection.
type IntegrationCredential struct {
	ID                    string
	OrganizationID        string
	IntegrationShortName  string
	AuthenticationMethod  AuthMethod
	OAuthType             OAuthType
	EncryptedCredentials  string // crypto.Encrypt output, opaque to callers
	AuthConfigClass       string
}

// OAuthType describes a source's refresh capability.
type OAuthType string

const (
	OAuthTypeNone            OAuthType = ""
	OAuthTypeAccessOnly      OAuthType = "access_only"
	OAuthTypeWithRefresh     OAuthType = "with_refresh"
	OAuthTypeRotatingRefresh OAuthType = "with_rotating_refresh"
)

// InitSessionStatus is the lifecycle status of a Connection Init Session.
type InitSessionStatus string

const (
	InitSessionPending   InitSessionStatus = "pending"
	InitSessionCompleted InitSessionStatus = "completed"
	InitSessionExpired   InitSessionStatus = "expired"
)

// ConnectionInitSession is the short-lived (30 min) record for an
// in-progress OAuth browser flow.
type ConnectionInitSession struct {
	ID               string
	OrganizationID   string
	ShortName        string
	State            string // random URL-safe 24-byte token
	Payload          map[string]any
	Overrides        OAuthOverrides
	Status           InitSessionStatus
	RedirectSessionID *string
	ExpiresAt        time.Time
	CreatedAt        time.Time
}

// OAuthOverrides carries per-session OAuth material: BYOC client
// credentials, PKCE verifier, redirect URL, and OAuth1 request-token pair.
type OAuthOverrides struct {
	ClientID         string `json:"client_id,omitempty"`
	ClientSecret     string `json:"client_secret,omitempty"`
	ConsumerKey      string `json:"consumer_key,omitempty"`
	ConsumerSecret   string `json:"consumer_secret,omitempty"`
	RedirectURL      string `json:"redirect_url,omitempty"`
	CodeVerifier     string `json:"code_verifier,omitempty"`
	OAuth1Token      string `json:"oauth1_token,omitempty"`
	OAuth1TokenSecret string `json:"oauth1_token_secret,omitempty"`
}

// RedirectSession is a short-code → URL record with expiry, used to proxy
// the OAuth provider's authorize URL through a stable API host.
type RedirectSession struct {
	Code      string
	URL       string
	ExpiresAt time.Time
}

// Sync binds a Source Connection to a destination Collection.
type Sync struct {
	ID                 string
	SourceConnectionID string
	CollectionID       string
	CronSchedule       *string
	NextScheduledRun   *time.Time
}

// JobStatus is one state of a Sync Job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// JobCounters tracks per-job entity action counts.
type JobCounters struct {
	Inserted int
	Updated  int
	Deleted  int
	Kept     int
	Skipped  int
}

// SyncJob is one execution of a Sync.
type SyncJob struct {
	ID          string
	SyncID      string
	Status      JobStatus
	Counters    JobCounters
	StartedAt   *time.Time
	CompletedAt *time.Time
	Error       string
}

// AccessControl describes an entity's viewer set. When both fields are
// zero-valued the entity has no ACL and is visible to anyone in the
// organization.
type AccessControl struct {
	Viewers  []string // namespaced principal ids: "user:...", "group:sp:...", "group:ad:..."
	IsPublic bool
}

// SystemMetadata is attached to every Entity during a sync; drivers never
// populate it themselves.
type SystemMetadata struct {
	SourceName       string
	EntityType       string
	SyncID           string
	SyncJobID        string
	ContentHash      string
	ChunkIndex       int
	OriginalEntityID string
	DenseVector      []float32
	SparseVector     map[uint32]float32
	DBEntityID       string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Entity is the polymorphic unit produced by a Source Driver.
type Entity struct {
	EntityID              string
	Breadcrumbs           []string // ordered ancestor entity ids
	Name                  string
	CreatedAt             *time.Time
	UpdatedAt             *time.Time
	TextualRepresentation string
	Access                *AccessControl
	Fields                map[string]any // source-specific fields, content-only
	File                  *FileFields    // non-nil for FileEntity
	System                SystemMetadata
}

// FileFields is the subtype payload for FileEntity.
type FileFields struct {
	URL       string
	Size      int64
	FileType  string
	MimeType  string
	LocalPath string
	RawBytes  []byte // set when the driver supplies bytes directly
	Filename  string
}

// IsFile reports whether the entity carries file fields.
func (e Entity) IsFile() bool { return e.File != nil }

// EntityRecord is the Sync Runner's (C9) reconciliation bookkeeping for one
// entity: the content hash last embedded for it, keyed by the sync that
// produced it. A run loads every EntityRecord for its sync_id once and
// diffs incoming entities against it to classify INSERT/UPDATE/KEEP, and
// whatever's left unmatched at the end of the stream is a DELETE.
type EntityRecord struct {
	SyncID      string
	EntityID    string
	DBEntityID  string
	ContentHash string
	UpdatedAt   time.Time
}

// Membership describes one entry of a source's optional principal
// membership graph (group → member), used by C13 Access Control Ingest.
type Membership struct {
	MemberID   string
	MemberType string // "user" | "group"
	GroupID    string
	GroupName  string
}

// Point is one row of a Collection's vector destination: an embedded
// entity chunk plus the payload carried alongside it for filtering and
// retrieval-time reconstruction. ID is a UUIDv5 computed by the Vector
// Store Adapter from (DBEntityID as namespace, EntityID as name) so the
// same entity always maps to the same point across re-syncs.
type Point struct {
	ID           string
	DenseVector  []float32
	SparseVector map[uint32]float32
	Payload      map[string]any
}
