package protocol

import (
	"encoding/json"

	"github.com/caffeineduck/webfdw/fdw"
)

// Op names a contract call.
type Op string

const (
	OpHostVersionRequirement Op = "host_version_requirement"
	OpInit                   Op = "init"
	OpBeginScan              Op = "begin_scan"
	OpIterScan               Op = "iter_scan"
	OpReScan                 Op = "re_scan"
	OpEndScan                Op = "end_scan"
	OpBeginModify            Op = "begin_modify"
	OpInsert                 Op = "insert"
	OpUpdate                 Op = "update"
	OpDelete                 Op = "delete"
	OpEndModify              Op = "end_modify"
	OpExit                   Op = "exit"
)

// Command is one contract call sent from host to guest.
type Command struct {
	Op      Op           `json:"op"`
	Context *fdw.Context `json:"context,omitempty"`
	Row     fdw.Row      `json:"row,omitempty"`
	RowID   *fdw.Cell    `json:"rowid,omitempty"`
}

// Result is the guest's answer to a Command.
type Result struct {
	Value string  `json:"value,omitempty"`
	Row   fdw.Row `json:"row,omitempty"`
	OK    bool    `json:"ok,omitempty"`
	Error *Error  `json:"error,omitempty"`
}

// CallRequest asks the host to run a registered function. ID pairs the
// request with its CallResponse.
type CallRequest struct {
	ID   uint64         `json:"id"`
	Fn   string         `json:"fn"`
	Args map[string]any `json:"args"`
}

type CallResponse struct {
	ID    uint64          `json:"id"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}
