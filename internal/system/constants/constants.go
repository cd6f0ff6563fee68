package constants

import "time"

const ApiBasePath = "/api/v1"
const IdentifyApiPath = "/identify"
const ContactsApiPath = "/contacts"
const HealthApiPath = "/health"
const ReadyApiPath = "/ready"
const MetricsApiPath = "/metrics"

const TraceIDHeader = "X-Trace-Id"

type contextKey string

const TraceIDContextKey contextKey = "trace_id"

// Store backends
const (
	PostgresStore = "postgres"
	MongoDBStore  = "mongodb"
	MemoryStore   = "memory"
)

// Advisory lock key prefixes
const (
	EmailLockPrefix = "contact:email:"
	PhoneLockPrefix = "contact:phone:"
)

const MaxRetryAttempts = 3
const RetryDelay = 50 * time.Millisecond
const LockTimeout = 5 * time.Second

const ContactsCollection = "contacts"
const CountersCollection = "counters"
const LocksCollection = "contact_locks"
const ContactIdSequence = "contact_id"

const ShutdownTimeout = 10 * time.Second
