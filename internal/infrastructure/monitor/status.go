package monitor

import "time"

type Status struct {
	Identity  bool      `json:"identity"`
	Store     bool      `json:"store"`
	Redis     bool      `json:"redis,omitempty"`
	LastCheck time.Time `json:"last_check"`
}
