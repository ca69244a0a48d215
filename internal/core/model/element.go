package model

const (
	PropertyText       = "text"
	PropertyStartIndex = "startIndex"
	PropertyEndIndex   = "endIndex"
)

// Element is a graph-resident node. ID is assigned by the store and never changes.
type Element struct {
	ID         string     `json:"id"`
	Tag        string     `json:"tag"`
	Properties Properties `json:"properties,omitempty"`
}

// Property returns the value stored under key.
func (e Element) Property(key string) (Value, bool) {
	v, ok := e.Properties[key]
	return v, ok
}

// Link is a directed, typed edge between two elements.
type Link struct {
	ID       string `json:"id"`
	Relation string `json:"relation"`
	From     string `json:"from"`
	To       string `json:"to"`
}

// Other returns the endpoint of l opposite to id.
func (l Link) Other(id string) string {
	if l.From == id {
		return l.To
	}
	return l.From
}

type Direction int

const (
	Outgoing Direction = iota
	Incoming
)

func (d Direction) String() string {
	if d == Incoming {
		return "incoming"
	}
	return "outgoing"
}

// IDs returns the element ids of seq in order.
func IDs(seq []Element) []string {
	ids := make([]string, len(seq))
	for i, e := range seq {
		ids[i] = e.ID
	}
	return ids
}
