package constants

// JobStatus is the canonical status for rows in extract_jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusOK      JobStatus = "OK"
	JobStatusFailed  JobStatus = "FAILED"
)

// ErrorKind labels why a file dropped out of a batch.
type ErrorKind string

const (
	KindRead     ErrorKind = "read"     // unreadable or unparseable PDF
	KindProvider ErrorKind = "provider" // network, auth or provider-side failure
	KindParse    ErrorKind = "parse"    // model output does not match the schema
	KindIO       ErrorKind = "io"       // saving the upload or a document failed
	KindUnknown  ErrorKind = "unknown"
)

// JobStatuses lists every JobStatus value.
var JobStatuses = []string{string(JobStatusRunning), string(JobStatusOK), string(JobStatusFailed)}

// ErrorKinds lists every ErrorKind value.
var ErrorKinds = []string{string(KindRead), string(KindProvider), string(KindParse), string(KindIO), string(KindUnknown)}
