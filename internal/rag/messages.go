package rag

// Fixed user-facing answer strings. These are responses, not errors:
// the ask flow degrades to them instead of failing the request.
const (
	// MsgNoDocuments is returned when similarity search finds nothing.
	MsgNoDocuments = "I don't have enough information to answer this question. Please upload some documents first."

	// MsgGenerationFailed is returned when the completion call fails.
	MsgGenerationFailed = "Sorry, I encountered an error while generating the answer."

	// MsgUploadSuccess confirms a processed ingest.
	MsgUploadSuccess = "Document uploaded and processed successfully"
)
