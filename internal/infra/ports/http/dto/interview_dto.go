package dto

import (
	"time"

	"github.com/hirelink/intercall/internal/domain"
)

type UpdateStatusRequest struct {
	Status    domain.InterviewStatus `json:"status"`
	StartedAt *time.Time             `json:"started_at,omitempty"`
	EndedAt   *time.Time             `json:"ended_at,omitempty"`
}

type IceServersResponse struct {
	IceServers []IceServer `json:"ice_servers"`
	TTL        int         `json:"ttl,omitempty"`
}

type IceServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}
