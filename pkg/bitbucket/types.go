package bitbucket

// Native Bitbucket Cloud 2.0 payload types. Only the fields prampel reads
// are declared; the adapter maps them into the canonical model.

// User is the authenticated account returned by /2.0/user.
type User struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// Account identifies a pull request author or participant.
type Account struct {
	DisplayName string `json:"display_name"`
	Nickname    string `json:"nickname"`
}

// Repository is one entry of the /2.0/repositories listing.
type Repository struct {
	FullName   string `json:"full_name"`
	IsPrivate  bool   `json:"is_private"`
	MainBranch struct {
		Name string `json:"name"`
	} `json:"mainbranch"`
}

type branchEndpoint struct {
	Branch struct {
		Name string `json:"name"`
	} `json:"branch"`
	Commit struct {
		Hash string `json:"hash"`
	} `json:"commit"`
}

// Participant is a reviewer or participant on a pull request. State is
// "approved", "changes_requested", or empty when the participant has not
// acted yet.
type Participant struct {
	User     Account `json:"user"`
	Role     string  `json:"role"`
	Approved bool    `json:"approved"`
	State    string  `json:"state"`
}

// PullRequest is the native pull request payload.
type PullRequest struct {
	ID           int            `json:"id"`
	Title        string         `json:"title"`
	State        string         `json:"state"`
	Draft        bool           `json:"draft"`
	CommentCount int            `json:"comment_count"`
	Author       Account        `json:"author"`
	Source       branchEndpoint `json:"source"`
	Destination  branchEndpoint `json:"destination"`
	Participants []Participant  `json:"participants"`
	MergeCommit  *struct {
		Hash string `json:"hash"`
	} `json:"merge_commit"`
}

// CommitStatus is one build status attached to the pull request's head
// commit. State is SUCCESSFUL, FAILED, INPROGRESS, or STOPPED.
type CommitStatus struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	State string `json:"state"`
}

// DiffStatEntry is one file of the pull request diffstat. Status is one of
// added, removed, modified, renamed (the API also documents the uppercase
// Server variants ADDED/REMOVED/MODIFIED/MOVED).
type DiffStatEntry struct {
	Status       string `json:"status"`
	LinesAdded   int    `json:"lines_added"`
	LinesRemoved int    `json:"lines_removed"`
	Old          *struct {
		Path string `json:"path"`
	} `json:"old"`
	New *struct {
		Path string `json:"path"`
	} `json:"new"`
}

// page is one page of a paginated collection; Next holds the full URL of the
// following page, empty on the last one.
type page[T any] struct {
	Values []T    `json:"values"`
	Next   string `json:"next"`
}
