package clickup

import (
	"strconv"
	"strings"
)

type clickupSpace struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type spacesResponse struct {
	Spaces []clickupSpace `json:"spaces"`
}

type clickupList struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type listsResponse struct {
	Lists []clickupList `json:"lists"`
}

type clickupTaskStatus struct {
	Status string `json:"status"`
}

type clickupTask struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	URL         string            `json:"url"`
	Status      clickupTaskStatus `json:"status"`
	DateCreated string            `json:"date_created"`
	DateUpdated string            `json:"date_updated"`
}

type tasksResponse struct {
	Tasks    []clickupTask `json:"tasks"`
	LastPage bool          `json:"last_page"`
}

// parseEpochMillis parses ClickUp's string-encoded epoch-millisecond
// timestamps, which arrive as JSON strings rather than numbers.
func parseEpochMillis(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseInt(s, 10, 64)
}
