// Package chat implements the standard and agentic chat loops: one
// retrieval plus a streamed answer, or a tool-use loop that lets the
// generator search, widen, and rewrite before answering.
package chat

import "github.com/northbound/drive-chat/internal/model"

// Phase names a step of the agentic loop's progress, streamed to the
// caller as a status event so a UI can show what the assistant is doing.
type Phase string

const (
	PhaseSearching   Phase = "searching"
	PhaseRewriting   Phase = "rewriting"
	PhaseReadingFile Phase = "reading_file"
	PhaseProcessing  Phase = "processing"
	PhaseGenerating  Phase = "generating"
)

// EventKind distinguishes the events multiplexed over a chat response.
type EventKind string

const (
	EventStatus EventKind = "status"
	EventToken  EventKind = "token"
	EventDone   EventKind = "done"
	EventError  EventKind = "error"
)

// Citation is one numbered source backing an assistant claim.
type Citation struct {
	ChunkID       string        `json:"chunk_id"`
	FileID        string        `json:"file_id"`
	FileName      string        `json:"file_name"`
	Location      model.Location `json:"location"`
	Excerpt       string        `json:"excerpt"`
	DriveDeepLink string        `json:"drive_deep_link"`
}

// Event is one unit of a chat response stream.
type Event struct {
	Kind  EventKind
	Token string
	Status struct {
		Phase     Phase
		Iteration int
		Tool      string
	}
	Done struct {
		Citations       map[string]Citation
		SearchedFiles   []string
		ConversationID  string
	}
	Error struct {
		Kind    string
		Message string
	}
}

func statusEvent(phase Phase, iteration int, tool string) Event {
	e := Event{Kind: EventStatus}
	e.Status.Phase = phase
	e.Status.Iteration = iteration
	e.Status.Tool = tool
	return e
}

func tokenEvent(text string) Event {
	return Event{Kind: EventToken, Token: text}
}

func doneEvent(citations map[string]Citation, searchedFiles []string, conversationID string) Event {
	e := Event{Kind: EventDone}
	e.Done.Citations = citations
	e.Done.SearchedFiles = searchedFiles
	e.Done.ConversationID = conversationID
	return e
}

func errorEvent(kind, message string) Event {
	e := Event{Kind: EventError}
	e.Error.Kind = kind
	e.Error.Message = message
	return e
}

// Request is one inbound Chat operation (spec §6).
type Request struct {
	TenantID       string
	FolderID       string
	Message        string
	ConversationID string // empty starts a new conversation
	AgentMode      bool
	MaxIterations  int
}
