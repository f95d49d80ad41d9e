package yaml

// TagID is a stable small-integer identifier for a tag URI within one
// TagLibrary. The reserved IDs below keep the same values in every library
// instance.
type TagID int

const (
	// TagQuestionMark marks a node with no explicit tag; the consumer is
	// expected to infer the type (the "?" non-specific tag).
	TagQuestionMark TagID = iota
	// TagExclamationMark is the explicit non-specific tag ("!").
	TagExclamationMark

	TagString
	TagSequence
	TagMapping
	TagNull
	TagBool
	TagInteger
	TagFloat
	TagBinary
	TagTimestamp

	firstDynamicTag
)

// Core schema tag URIs.
const (
	StrTagURI       = "tag:yaml.org,2002:str"
	SeqTagURI       = "tag:yaml.org,2002:seq"
	MapTagURI       = "tag:yaml.org,2002:map"
	NullTagURI      = "tag:yaml.org,2002:null"
	BoolTagURI      = "tag:yaml.org,2002:bool"
	IntTagURI       = "tag:yaml.org,2002:int"
	FloatTagURI     = "tag:yaml.org,2002:float"
	BinaryTagURI    = "tag:yaml.org,2002:binary"
	TimestampTagURI = "tag:yaml.org,2002:timestamp"

	yamlTagPrefix = "tag:yaml.org,2002:"
)

// TagLibrary maps tag URIs to TagIDs and tag handles to URI prefixes.
// A library may be shared across sequential parses; %TAG-introduced handle
// bindings are per-document and are reset by the parser at each document
// start. Concurrent use from parallel parsers needs external locking.
type TagLibrary struct {
	tags    map[string]TagID
	uris    map[TagID]string
	handles map[string]string
	next    TagID
}

// NewTagLibrary returns a library with only the two primary handles bound
// ("!" and "!!") and no URIs registered beyond the reserved IDs.
func NewTagLibrary() *TagLibrary {
	t := &TagLibrary{
		tags:    make(map[string]TagID),
		uris:    make(map[TagID]string),
		handles: make(map[string]string),
		next:    firstDynamicTag,
	}
	t.ResetHandles()
	return t
}

// NewCoreTagLibrary returns a library with the YAML 1.2 core schema
// pre-registered at the reserved IDs.
func NewCoreTagLibrary() *TagLibrary {
	t := NewTagLibrary()
	core := map[string]TagID{
		StrTagURI:       TagString,
		SeqTagURI:       TagSequence,
		MapTagURI:       TagMapping,
		NullTagURI:      TagNull,
		BoolTagURI:      TagBool,
		IntTagURI:       TagInteger,
		FloatTagURI:     TagFloat,
		BinaryTagURI:    TagBinary,
		TimestampTagURI: TagTimestamp,
	}
	for uri, id := range core {
		t.tags[uri] = id
		t.uris[id] = uri
	}
	return t
}

// ResetHandles restores the default handle bindings, discarding any %TAG
// rebindings from a previous document.
func (t *TagLibrary) ResetHandles() {
	for h := range t.handles {
		delete(t.handles, h)
	}
	t.handles["!"] = "!"
	t.handles["!!"] = yamlTagPrefix
}

// Resolve returns the URI prefix a handle is bound to, or "" if the handle
// is unknown.
func (t *TagLibrary) Resolve(handle string) string {
	return t.handles[handle]
}

// RegisterHandle binds handle to a URI prefix, overriding any prior binding.
func (t *TagLibrary) RegisterHandle(handle, prefix string) {
	t.handles[handle] = prefix
}

// RegisterURI returns the ID for uri, registering it first if needed.
// Registering the same URI twice yields the same ID.
func (t *TagLibrary) RegisterURI(uri string) TagID {
	if id, ok := t.tags[uri]; ok {
		return id
	}
	id := t.next
	t.next++
	t.tags[uri] = id
	t.uris[id] = uri
	return id
}

// URI returns the URI registered for id.
func (t *TagLibrary) URI(id TagID) (string, bool) {
	switch id {
	case TagQuestionMark:
		return "?", true
	case TagExclamationMark:
		return "!", true
	}
	uri, ok := t.uris[id]
	return uri, ok
}
