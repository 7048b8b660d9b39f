package realtime

import "encoding/json"

// Server→client event names. Clients merge these into their local mirror;
// all payloads are idempotent upserts or removes by id.
const (
	EventInitialData    = "initialData"
	EventClientsUpdated = "clientsUpdated"
	EventNodeUpdated    = "nodeUpdated"
	EventNodeDeleted    = "nodeDeleted"
	EventEdgeUpdated    = "edgeUpdated"
	EventEdgeDeleted    = "edgeDeleted"
	EventDataImported   = "dataImported"
	EventDataCleared    = "dataCleared"
	EventProjectDeleted = "projectDeleted"
	EventError          = "error"
)

// Client→server event names.
const (
	EventJoinProject = "joinProject"
)

// Envelope is the wire frame for every realtime message in both
// directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into a ready-to-send frame.
func NewEnvelope(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// JoinRequest is the payload of a joinProject event.
type JoinRequest struct {
	Token string `json:"token"`
}

// ErrorPayload is the payload of an error event.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ClientsPayload is the payload of a clientsUpdated event.
type ClientsPayload struct {
	Clients int `json:"clients"`
}
