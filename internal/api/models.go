package api

// OpenBrowserRequest is the body of POST /v1/sessions.
type OpenBrowserRequest struct {
	ID      string `json:"id"`
	URL     string `json:"url" binding:"required"`
	Browser string `json:"browser" binding:"required"`
}

// OpenBrowserResponse returns the id the session was registered under.
type OpenBrowserResponse struct {
	ID string `json:"id"`
}

// ResizeRequest is the body of POST /v1/sessions/:id/resize.
type ResizeRequest struct {
	Width  int `json:"width" binding:"required,gt=0"`
	Height int `json:"height" binding:"required,gt=0"`
}

// ScreenshotRequest is the body of POST /v1/sessions/:id/screenshot.
type ScreenshotRequest struct {
	Path string `json:"path"`
}

// StatusRequest is the body of POST /v1/sessions/:id/status.
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
	Remark string `json:"remark"`
}

// BrowsersResponse is the payload of GET /v1/browsers.
type BrowsersResponse struct {
	Browsers []string `json:"browsers"`
}
