package storage

import "time"

// FolderStatus tracks a folder's lifecycle from registration through
// steady-state sync.
type FolderStatus string

const (
	FolderStatusPending  FolderStatus = "pending"
	FolderStatusSyncing  FolderStatus = "syncing"
	FolderStatusIndexing FolderStatus = "indexing"
	FolderStatusReady    FolderStatus = "ready"
	FolderStatusError    FolderStatus = "error"
	FolderStatusDeleting FolderStatus = "deleting"
)

// Folder is one registered drive folder being indexed for a tenant.
type Folder struct {
	ID            string
	TenantID      string
	DriveFolderID string
	Name          string
	Status        FolderStatus
	FilesTotal    int
	FilesIndexed  int
	LastSyncedAt  *time.Time
	LastError     string
	CreatedAt     time.Time
}

// FileStatus tracks one file's indexing lifecycle.
type FileStatus string

const (
	FileStatusPending FileStatus = "pending"
	FileStatusQueued  FileStatus = "queued"
	FileStatusIndexed FileStatus = "indexed"
	FileStatusFailed  FileStatus = "failed"
	FileStatusDeleted FileStatus = "deleted"
)

// File is one drive file tracked within a folder.
type File struct {
	ID           string
	FolderID     string
	TenantID     string
	DriveFileID  string
	Name         string
	MimeType     string
	ModifiedTime time.Time
	Status       FileStatus
	LastError    string
	DeepLink     string
	Preview      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// JobStatus tracks one indexing job's claim lifecycle.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

// JobType names the kind of work an indexing job represents.
type JobType string

const (
	JobTypeIndex JobType = "index"
	JobTypeDelete JobType = "delete"
)

// IndexingJob is one unit of work claimed by an indexing worker.
type IndexingJob struct {
	ID        string
	FileID    string
	FolderID  string
	TenantID  string
	JobType   JobType
	Status    JobStatus
	Attempts  int
	Priority  int
	LastError string
	NextRunAt time.Time
	CreatedAt time.Time

	// Populated by ClaimNextJob as a convenience for the worker so it
	// doesn't need a second round trip to resolve the file it's indexing.
	DriveFileID string
	FileName    string
	MimeType    string
}

// Conversation groups a sequence of chat messages scoped to one folder.
type Conversation struct {
	ID        string
	FolderID  string
	TenantID  string
	CreatedAt time.Time
}

// MessageRole distinguishes user turns from assistant turns.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	ID             string
	ConversationID string
	Role           MessageRole
	Content        string
	Citations      []byte // raw JSON, decoded by the chat package
	CreatedAt      time.Time
}

// AuditAction names the kind of access-control event being recorded.
type AuditAction string

const (
	AuditActionAccessDenied AuditAction = "ACCESS_DENIED"
	AuditActionFolderDelete AuditAction = "FOLDER_DELETE"
	AuditActionChat         AuditAction = "CHAT"
)
