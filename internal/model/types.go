package model

import "time"

const EnvelopeVersion = "v1"

// Envelope wraps every command result so callers (human or tool-calling
// agent) get a uniform success/error shape.
type Envelope struct {
	Version  string       `json:"version"`
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorBody   `json:"error"`
	Warnings []string     `json:"warnings,omitempty"`
	Meta     EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type EnvelopeMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
}

// ChainInfo is the chains/tokens listing row.
type ChainInfo struct {
	Name    string      `json:"name"`
	Slug    string      `json:"slug"`
	ChainID int64       `json:"chain_id"`
	RPCURL  string      `json:"rpc_url,omitempty"`
	Tokens  []TokenInfo `json:"tokens,omitempty"`
}

type TokenInfo struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
	Native   bool   `json:"native"`
}
