// Package signal defines the raw collaboration records ingested by a run.
package signal

import "strconv"

// Source names a signal type selectable when triggering a run.
type Source string

const (
	SourceSlack Source = "slack"
	SourceFigma Source = "figma"
	SourceJira  Source = "jira"
)

// DefaultSources is used when a trigger names no sources.
var DefaultSources = []Source{SourceSlack, SourceFigma}

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceSlack, SourceFigma, SourceJira:
		return true
	}
	return false
}

// Message is one chat message. TS is the chat platform's timestamp string
// ("1712345678.000100"), which orders messages within a channel.
type Message struct {
	User string `json:"user"`
	Text string `json:"text"`
	TS   string `json:"ts"`
}

// Time returns TS as seconds since epoch; malformed values sort first.
func (m Message) Time() float64 {
	f, err := strconv.ParseFloat(m.TS, 64)
	if err != nil {
		return 0
	}
	return f
}

// Page is a top-level page (canvas) of a design file.
type Page struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Comment is a reviewer comment on a design file.
type Comment struct {
	ID        string `json:"id"`
	User      string `json:"user"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

// DesignFile is the metadata of a design document and its comments.
type DesignFile struct {
	Key          string    `json:"key"`
	Name         string    `json:"name"`
	LastModified string    `json:"lastModified,omitempty"`
	Pages        []Page    `json:"pages"`
	Comments     []Comment `json:"comments"`
}

// HistorySummary describes previously stored messages for a project.
type HistorySummary struct {
	Count       int      `json:"count"`
	Oldest      string   `json:"oldest,omitempty"`
	Newest      string   `json:"newest,omitempty"`
	Topics      []string `json:"topics"`
	UniqueUsers []string `json:"unique_users"`
}
