package types

import (
	"fmt"
	"strings"
	"time"
)

// PendingPing is a collected ping waiting for upload.
type PendingPing struct {
	// CollectionDate orders the pending queue chronologically.
	CollectionDate string
	// Path is the submission path, "/submit/<appId>/<ping>/<schema>/<docId>".
	Path    string
	Payload map[string]any
	// Headers are per-ping debugging headers (X-Debug-ID, X-Source-Tags).
	Headers map[string]string
}

// SubmissionPath builds the URL path a ping is POSTed to.
func SubmissionPath(appID, pingName, documentID string) string {
	return fmt.Sprintf("/submit/%s/%s/%d/%s", appID, pingName, SchemaVersion, documentID)
}

// PingNameFromPath extracts the ping name out of a submission path.
func PingNameFromPath(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) < 4 {
		return ""
	}
	return parts[3]
}

// IsDeletionRequestPath reports whether the submission path belongs to a
// deletion-request ping. Those bypass upload gating and pending-queue quotas.
func IsDeletionRequestPath(path string) bool {
	return PingNameFromPath(path) == DeletionRequestPingName
}

// Stored returns the storage-tree representation of the ping.
func (p *PendingPing) Stored() any {
	m := map[string]any{
		"collectionDate": p.CollectionDate,
		"path":           p.Path,
		"payload":        p.Payload,
	}
	if len(p.Headers) > 0 {
		headers := make(map[string]any, len(p.Headers))
		for k, v := range p.Headers {
			headers[k] = v
		}
		m["headers"] = headers
	}
	return m
}

// PingFromStored validates a raw storage value as a pending ping. Corrupt
// entries are deleted by the pings database.
func PingFromStored(raw any) (*PendingPing, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, Errorf(InvalidType, "expected ping object, got %T", raw)
	}
	if len(m) != 3 && len(m) != 4 {
		return nil, Errorf(InvalidType, "ping object has %d keys, want 3 or 4", len(m))
	}
	date, ok := m["collectionDate"].(string)
	if !ok {
		return nil, Errorf(InvalidType, "ping has invalid collection date %v", m["collectionDate"])
	}
	if _, err := time.Parse(time.RFC3339, date); err != nil {
		return nil, Errorf(InvalidType, "ping has unparseable collection date %q", date)
	}
	path, ok := m["path"].(string)
	if !ok {
		return nil, Errorf(InvalidType, "ping has invalid path %v", m["path"])
	}
	payload, ok := m["payload"].(map[string]any)
	if !ok {
		return nil, Errorf(InvalidType, "ping has invalid payload %v", m["payload"])
	}
	ping := &PendingPing{CollectionDate: date, Path: path, Payload: payload}
	if rawHeaders, present := m["headers"]; present {
		headers, ok := rawHeaders.(map[string]any)
		if !ok {
			return nil, Errorf(InvalidType, "ping has invalid headers %v", rawHeaders)
		}
		ping.Headers = make(map[string]string, len(headers))
		for k, v := range headers {
			s, ok := v.(string)
			if !ok {
				return nil, Errorf(InvalidType, "ping header %q is not a string", k)
			}
			ping.Headers[k] = s
		}
	}
	return ping, nil
}
