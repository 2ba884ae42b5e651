package types

// PagePayload is the server-rendered description of one logical page
type PagePayload struct {
	ID          string   `json:"id"`
	Route       string   `json:"route"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	Modules     []string `json:"modules"`
}

// FragmentResponse is the body returned by a fragment request
type FragmentResponse struct {
	Page *PagePayload `json:"page"`
}

// HistoryState is stored with every history entry the shell pushes
type HistoryState struct {
	Path string `json:"path"`
}
