package slack

type authTestResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type slackChannel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type responseMetadata struct {
	NextCursor string `json:"next_cursor"`
}

type conversationsListResponse struct {
	OK               bool             `json:"ok"`
	Error            string           `json:"error"`
	Channels         []slackChannel   `json:"channels"`
	ResponseMetadata responseMetadata `json:"response_metadata"`
}

type slackMessage struct {
	Ts      string `json:"ts"`
	User    string `json:"user"`
	Text    string `json:"text"`
	Channel string `json:"channel"`
}

type conversationsHistoryResponse struct {
	OK               bool             `json:"ok"`
	Error            string           `json:"error"`
	Messages         []slackMessage   `json:"messages"`
	HasMore          bool             `json:"has_more"`
	ResponseMetadata responseMetadata `json:"response_metadata"`
}

type searchMessagesResponse struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error"`
	Messages struct {
		Matches []slackMessage `json:"matches"`
	} `json:"messages"`
}
