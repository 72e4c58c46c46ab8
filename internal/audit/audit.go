package audit

import (
	"database/sql"
	"log"

	"invdash/internal/websocket"
)

// Action constants.
const (
	ActionCreate   = "CREATE"
	ActionUpdate   = "UPDATE"
	ActionDelete   = "DELETE"
	ActionAdjust   = "ADJUST"
	ActionApprove  = "APPROVE"
	ActionReject   = "REJECT"
	ActionGenerate = "GENERATE"
	ActionExport   = "EXPORT"
)

// Log writes an audit entry and broadcasts the change to connected
// dashboard clients. Audit failures are logged, never fatal: the
// mutation that triggered them has already committed.
func Log(db *sql.DB, hub *websocket.Hub, username, action, module, recordID, summary string) {
	_, err := db.Exec("INSERT INTO audit_log (username, action, module, record_id, summary) VALUES (?, ?, ?, ?, ?)",
		username, action, module, recordID, summary)
	if err != nil {
		log.Printf("audit log error: %v", err)
	}
	if hub != nil {
		hub.Broadcast(websocket.Event{Module: module, Action: action, ID: recordID})
	}
}
