// Package api holds the JSON bodies exchanged between the service and its
// clients.
package api

// CreatePostRequest creates a topic, or a reply when ParentID is set.
type CreatePostRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	ParentID *int64 `json:"parentId,omitempty"`
}

type ShareRecordRequest struct {
	RecordID int64 `json:"recordId"`
}

type CreateRecordRequest struct {
	Date   string `json:"date"`
	Type   string `json:"type"`
	Crop   string `json:"crop"`
	Detail string `json:"detail"`
	Amount string `json:"amount"`
	Memo   string `json:"memo"`
}

type BroadcastRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type CreateCommunityRequest struct {
	Name string `json:"name"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
