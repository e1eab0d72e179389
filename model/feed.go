package model

// FeedRequest is the body of the anonymous feed endpoints.
type FeedRequest struct {
	Limit  *int    `json:"limit"`
	Cursor *string `json:"cursor"`
}

// FeedResponse is returned by the anonymous feed endpoints.
type FeedResponse struct {
	Success    bool         `json:"success"`
	Posts      []PublicPost `json:"posts"`
	HasMore    bool         `json:"hasMore"`
	NextCursor *string      `json:"nextCursor"`
}
