package models

import "encoding/json"

// Requests for arena HTTP endpoints.

type JoinRequest struct {
	Wallet string          `json:"wallet" validate:"required,wallet"`
	Model  json.RawMessage `json:"model" validate:"required"`
}

type TradesRequest struct {
	Limit int `query:"limit" json:"limit" default:"50"`
}

type JoinResponse struct {
	Wallet string `json:"wallet"`
	Name   string `json:"name"`
	Color  string `json:"color"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Running   bool   `json:"running"`
	TickCount int64  `json:"tickCount"`
	Fighters  int    `json:"fighters"`
	Store     string `json:"store"`
	UptimeSec int64  `json:"uptimeSec"`
}
