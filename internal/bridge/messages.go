package bridge

import (
	"github.com/dmitrijs2005/almacen/internal/models"
)

// Channel names, one gRPC method each.
const (
	MethodSaveMemory    = "SaveMemory"
	MethodGetMemory     = "GetMemory"
	MethodDeleteMemory  = "DeleteMemory"
	MethodListMemories  = "ListMemories"
	MethodCountMemories = "CountMemories"
	MethodAllMemories   = "AllMemories"
	MethodAppendAudit   = "AppendAudit"
	MethodLastAudit     = "LastAudit"
	MethodQueryAudit    = "QueryAudit"
	MethodAllAudit      = "AllAudit"
	MethodGetSetting    = "GetSetting"
	MethodSetSetting    = "SetSetting"
	MethodDeleteSetting = "DeleteSetting"
	MethodListSettings  = "ListSettings"
	MethodClearSettings = "ClearSettings"
	MethodReplaceAll    = "ReplaceAll"
	MethodPing          = "Ping"
)

type empty struct{}

type idRequest struct {
	ID int64 `json:"id"`
}

type pageRequest struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type countResponse struct {
	Count int `json:"count"`
}

type queryAuditRequest struct {
	Filter models.AuditFilter `json:"filter"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

type queryAuditResponse struct {
	Entries []models.AuditEntry `json:"entries"`
	Total   int                 `json:"total"`
}

type settingRequest struct {
	Key   string `json:"key"`
	Value []byte `json:"value,omitempty"`
}

type settingResponse struct {
	Value []byte `json:"value"`
}

type snapshotMessage struct {
	Memories []models.Memory     `json:"memories"`
	AuditLog []models.AuditEntry `json:"auditLog"`
	Settings map[string][]byte   `json:"settings"`
}

type pingResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
}
