package model

// MemoryFile is a file selected on the client but not uploaded yet.
// It has no server-side identity; ID is ephemeral.
type MemoryFile struct {
	ID       string
	Filename string
	Size     int64
	MimeType string
	Data     []byte
	Preview  string
}
