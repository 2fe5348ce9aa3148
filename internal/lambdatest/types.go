package lambdatest

// SessionStatus values accepted by the automation API for a finished session.
const (
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusError   = "error"
	StatusIgnored = "ignored"
)

// Browser is one installable browser version on a grid platform.
type Browser struct {
	Name    string `json:"browser_name"`
	Version string `json:"version"`
}

// Platform is one operating system image of the grid and the browsers it carries.
type Platform struct {
	OS       string    `json:"os"`
	Browsers []Browser `json:"browsers"`
}

// PlatformsResponse is the payload of GET /platforms.
type PlatformsResponse struct {
	Platforms map[string][]Platform `json:"platforms"`
}

// User is the account behind the configured credentials.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Token    string `json:"token"`
}

// UserResponse is the payload of GET /user.
type UserResponse struct {
	Message string `json:"message"`
	Data    User   `json:"data"`
}

// SessionUpdate is the body of PATCH /sessions/{id}.
type SessionUpdate struct {
	StatusInd string `json:"status_ind"`
	Name      string `json:"name,omitempty"`
}

// Session is the session detail record returned by the automation API.
type Session struct {
	ID              string `json:"session_id"`
	Name            string `json:"name"`
	Build           string `json:"build_name"`
	StatusInd       string `json:"status_ind"`
	BrowserName     string `json:"browser"`
	BrowserVersion  string `json:"browser_version"`
	Platform        string `json:"platform"`
	VideoURL        string `json:"video_url"`
	ConsoleLogsURL  string `json:"console_logs_url"`
	NetworkLogsURL  string `json:"network_logs_url"`
	CommandLogsURL  string `json:"command_logs_url"`
	SeleniumLogsURL string `json:"selenium_logs_url"`
}

// SessionResponse is the payload of GET /sessions/{id}.
type SessionResponse struct {
	Message string  `json:"message"`
	Data    Session `json:"data"`
}

type messageResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}
