// Package har exports an import timing tree as an HTTP Archive (HAR 1.2)
// document. Each import becomes a request, and nesting is expressed by
// time windows: a parent's window contains the windows of its children.
package har

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"importwaterfall/internal/importtime"
)

// Epoch is the default start of the virtual clock.
var Epoch = time.Date(1991, time.July, 5, 0, 0, 0, 0, time.UTC)

// Unit is the virtual duration of one trace time unit.
const Unit = time.Millisecond

const (
	pageID     = "page0"
	timeLayout = "2006-01-02T15:04:05.000Z"
)

// Meta identifies the profiled program. It only feeds descriptive fields.
type Meta struct {
	Module         string    // entry module, used when the tree is empty
	RuntimeVersion string    // interpreter version string
	Epoch          time.Time // zero means Epoch
}

// Document is the top-level HAR object.
type Document struct {
	Log Log `json:"log"`
}

// Log holds the pages and entries of a HAR document.
type Log struct {
	Version string  `json:"version"`
	Creator Tool    `json:"creator"`
	Browser Tool    `json:"browser"`
	Pages   []Page  `json:"pages"`
	Entries []Entry `json:"entries"`
}

// Tool names the program that produced the archive.
type Tool struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Page groups all entries.
type Page struct {
	StartedDateTime string      `json:"startedDateTime"`
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	PageTimings     PageTimings `json:"pageTimings"`
}

// PageTimings is always unset (-1) for an import trace.
type PageTimings struct {
	OnContentLoad int64 `json:"onContentLoad"`
	OnLoad        int64 `json:"onLoad"`
}

// Entry is one imported module rendered as a request.
type Entry struct {
	PageRef         string   `json:"page_ref"`
	StartedDateTime string   `json:"startedDateTime"`
	Time            int64    `json:"time"`
	Request         Request  `json:"request"`
	Response        Response `json:"response"`
	Cache           struct{} `json:"cache"`
	Timings         Timings  `json:"timings"`
	ServerIPAddress string   `json:"serverIpAddress"`
}

// Header is a name/value pair; import entries carry none.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Request describes the synthetic request for a module.
type Request struct {
	Method      string   `json:"method"`
	URL         string   `json:"url"`
	HTTPVersion string   `json:"httpVersion"`
	Cookies     []Header `json:"cookies"`
	Headers     []Header `json:"headers"`
	QueryString []Header `json:"queryString"`
	HeadersSize int64    `json:"headersSize"`
	BodySize    int64    `json:"bodySize"`
}

// Response describes the synthetic response for a module.
type Response struct {
	Status      int      `json:"status"`
	StatusText  string   `json:"statusText"`
	HTTPVersion string   `json:"httpVersion"`
	Cookies     []Header `json:"cookies"`
	Headers     []Header `json:"headers"`
	Content     Content  `json:"content"`
	RedirectURL string   `json:"redirectURL"`
	HeadersSize int64    `json:"headersSize"`
	BodySize    int64    `json:"bodySize"`
}

// Content describes the response body.
type Content struct {
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}

// Timings splits an entry's time. Wait is the time spent in descendants,
// Receive the module's own time.
type Timings struct {
	Blocked int64 `json:"blocked"`
	DNS     int64 `json:"dns"`
	Connect int64 `json:"connect"`
	SSL     int64 `json:"ssl"`
	Send    int64 `json:"send"`
	Wait    int64 `json:"wait"`
	Receive int64 `json:"receive"`
}

func stamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

type exporter struct {
	tree    *importtime.Tree
	epoch   time.Time
	clock   int64
	entries []Entry
}

// Export builds the HAR document for tree. Entries appear in the order
// their imports finish (post-order).
func Export(tree *importtime.Tree, meta Meta) *Document {
	epoch := meta.Epoch
	if epoch.IsZero() {
		epoch = Epoch
	}
	ex := &exporter{tree: tree, epoch: epoch, entries: []Entry{}}
	kids := tree.Children(tree.Root())
	for _, child := range kids {
		ex.visit(child)
	}

	module := meta.Module
	if len(kids) > 0 {
		module = tree.Name(kids[len(kids)-1])
	}
	tool := Tool{Name: "python", Version: meta.RuntimeVersion}
	return &Document{Log: Log{
		Version: "1.2",
		Creator: tool,
		Browser: tool,
		Pages: []Page{{
			StartedDateTime: stamp(epoch),
			ID:              pageID,
			Title:           fmt.Sprintf("`import %s` %s", module, meta.RuntimeVersion),
			PageTimings:     PageTimings{OnContentLoad: -1, OnLoad: -1},
		}},
		Entries: ex.entries,
	}}
}

func (ex *exporter) at(clock int64) time.Time {
	return ex.epoch.Add(time.Duration(clock) * Unit)
}

// visit reserves one unit so a parent's window strictly contains its first
// child's, runs the children, then spends the rest of the node's own time.
// A node without self time reserves nothing: unlike a fixed one-unit lead
// followed by self-1, its window then starts with its first child's and
// never ends before its last child's. Durations are the same either way.
func (ex *exporter) visit(id importtime.NodeID) {
	start := ex.clock
	self := ex.tree.Self(id)
	lead := min(self, 1)

	ex.clock += lead
	for _, child := range ex.tree.Children(id) {
		ex.visit(child)
	}
	ex.clock += self - lead

	duration := ex.clock - start
	ex.entries = append(ex.entries, newEntry(ex.tree.Name(id), stamp(ex.at(start)), duration, self))
}

func newEntry(name, started string, duration, self int64) Entry {
	return Entry{
		PageRef:         pageID,
		StartedDateTime: started,
		Time:            duration,
		Request: Request{
			Method:      "GET",
			URL:         name,
			HTTPVersion: "HTTP/0.0",
			Cookies:     []Header{},
			Headers:     []Header{},
			QueryString: []Header{},
		},
		Response: Response{
			Status:      200,
			StatusText:  "OK",
			HTTPVersion: "HTTP/0.0",
			Cookies:     []Header{},
			Headers:     []Header{},
			Content:     Content{MimeType: "text/x-python"},
		},
		Timings: Timings{
			Wait:    duration - self,
			Receive: self,
		},
		ServerIPAddress: "0.0.0.0",
	}
}

// Write encodes doc as a single compact JSON line.
func Write(w io.Writer, doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode HAR: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write HAR: %w", err)
	}
	return nil
}
