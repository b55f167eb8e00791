package handler

import (
	"time"

	"Conquest/internal/game/entity"
)

// Response 是所有接口的统一响应体，code 为 0 表示成功。
type Response struct {
	Code    int            `json:"code"`
	Reason  string         `json:"reason,omitempty"`
	Message string         `json:"message,omitempty"`
	Data    any            `json:"data,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func Success(data any) Response {
	return Response{Code: 0, Data: data}
}

func Error(code int, msg string) Response {
	return Response{Code: code, Message: msg}
}

type RegisterReq struct {
	ExternalID string `json:"external_id" binding:"required"`
	Name       string `json:"name" binding:"required"`
}

type RegisterResp struct {
	PlayerID  entity.PlayerID `json:"player_id"`
	Created   bool            `json:"created"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
}

type UpgradeReq struct {
	Building entity.BuildingType `json:"building" binding:"required"`
}

type TrainReq struct {
	Unit     entity.UnitType `json:"unit" binding:"required"`
	Quantity int64           `json:"quantity" binding:"required"`
}

type AttackReq struct {
	SourceCity entity.CityID `json:"source_city"`
	TargetCity entity.CityID `json:"target_city" binding:"required"`
	Force      entity.Army   `json:"force"`
}

type ExchangeReq struct {
	To   entity.ResourceKind `json:"to" binding:"required"`
	Gold int64               `json:"gold" binding:"required"`
}
