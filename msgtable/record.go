package msgtable

import "log/slog"

// MessageRecord is one decoded message table entry. Log and Source are the
// log and source that first caused its module to be loaded.
type MessageRecord struct {
	Log    string     `json:"log"`
	Source string     `json:"source"`
	ID     StatusCode `json:"id"`
	Text   string     `json:"message"`
}

// RecordKey is the identity of a MessageRecord, usable as a map key.
type RecordKey struct {
	ID   StatusCode
	Text string
}

// Key returns the (id, text) pair records are compared and hashed by.
func (r *MessageRecord) Key() RecordKey {
	return RecordKey{ID: r.ID, Text: r.Text}
}

// Equal reports whether both records carry the same id and text, the log and
// source they were found through do not matter.
func (r *MessageRecord) Equal(other *MessageRecord) bool {
	if other == nil {
		return false
	}
	return r.ID == other.ID && r.Text == other.Text
}

// EventID returns the value Event Viewer shows in its "Event ID" column.
func (r *MessageRecord) EventID() uint16 {
	return r.ID.Code()
}

func (r MessageRecord) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("log", r.Log),
		slog.String("source", r.Source),
		slog.Any("id", r.ID),
		slog.Int("length", len(r.Text)),
	)
}
