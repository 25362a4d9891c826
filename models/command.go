package models

import (
	"encoding/json"
	"time"
)

// CommandType is an instruction queued in the commands table for the daemon.
type CommandType string

const (
	CmdExtractNow    CommandType = "extract_now"
	CmdExtractSite   CommandType = "extract_site"
	CmdExtractURLs   CommandType = "extract_urls"
	CmdRunNormalizer CommandType = "run_normalizer"
	CmdPause         CommandType = "pause"
	CmdResume        CommandType = "resume"
)

type Command struct {
	ID          int64           `json:"id" db:"id"`
	Command     CommandType     `json:"command" db:"command"`
	Params      json.RawMessage `json:"params" db:"params"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at" db:"processed_at"`
}

type CommandParams struct {
	Site string   `json:"site,omitempty"`
	URLs []string `json:"urls,omitempty"`
}
