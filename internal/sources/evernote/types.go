package evernote

type evernoteNotebook struct {
	GUID           string `json:"guid"`
	Name           string `json:"name"`
	Stack          string `json:"stack"`
	ServiceCreated int64  `json:"serviceCreated"`
	ServiceUpdated int64  `json:"serviceUpdated"`
}

type notebooksResponse struct {
	Notebooks []evernoteNotebook `json:"notebooks"`
}

type evernoteNote struct {
	GUID             string `json:"guid"`
	Title            string `json:"title"`
	ContentPlainText string `json:"contentPlainText"`
	Created          int64  `json:"created"`
	Updated          int64  `json:"updated"`
}

type notesResponse struct {
	Notes []evernoteNote `json:"notes"`
}
