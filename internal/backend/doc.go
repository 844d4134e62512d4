// Package backend provides an HTTP client for the chatbot backend API.
//
// # Overview
//
// The backend owns conversations, the assistant, the knowledge bases and the
// environment profiles. chatdesk only talks to it over HTTP:
//
//   - client.go: the Client, request/response handling and error decoding
//   - types.go: transport types, timestamp parsing and DTO conversion
//
// # Client Usage
//
//	client, err := backend.NewClient("127.0.0.1:8000", backend.Options{Location: loc})
//	if err != nil {
//		return err
//	}
//	convs, err := client.FetchConversations(ctx)
//
// # Endpoints
//
//   - POST /api/facebook/conversations: full conversation list
//   - POST /api/facebook/send: deliver a message to an external user
//   - POST /api/query: ask the assistant (session_id, question, emotional)
//   - POST /api/start_session, /api/upload: multipart, return a session_id
//   - POST /api/toggle_switch: assistant on/off
//   - POST /api/mongodb/{test-connection,databases,collections}
//   - POST /api/pinecone/indexes
//   - /api/environment/configurations[/{id}[/activate]]: profile CRUD
//
// # Error Handling
//
// Every non-2xx response becomes an *APIError carrying the path, status and
// the body's "error" or "detail" message when present:
//
//	api /api/query returned status 404: Session not found
//
// Bodies that cannot be decoded, unknown message types and unparseable
// timestamps are reported as ErrMalformedPayload, so the poller counts the
// cycle as a failed fetch and keeps the last good list.
//
// # Timestamps
//
// Timestamp accepts RFC 3339, the backend's naive ISO form (interpreted in
// the Location given to NewClient), and numeric epoch seconds or
// milliseconds.
//
// # Thread Safety
//
// The Client is safe for concurrent use.
package backend
