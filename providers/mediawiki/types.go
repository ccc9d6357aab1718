package mediawiki

// apiResponse bildet die JSON-Antwort von action=query&prop=revisions (formatversion=2) ab.
type apiResponse struct {
	Error *apiError `json:"error"`
	Query struct {
		Pages []apiPage `json:"pages"`
	} `json:"query"`
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

type apiPage struct {
	PageID    int64         `json:"pageid"`
	NS        int           `json:"ns"`
	Title     string        `json:"title"`
	Missing   bool          `json:"missing"`
	Invalid   bool          `json:"invalid"`
	Revisions []apiRevision `json:"revisions"`
}

type apiRevision struct {
	RevID     int64  `json:"revid"`
	ParentID  int64  `json:"parentid"`
	Timestamp string `json:"timestamp"`
	Slots     struct {
		Main struct {
			ContentModel string `json:"contentmodel"`
			Content      string `json:"content"`
		} `json:"main"`
	} `json:"slots"`
}
