package model

import "time"

// Schedule applies a profile on a cron expression
type Schedule struct {
	ID          string     `json:"id" yaml:"id"`
	ProfileName string     `json:"profile_name" yaml:"profile_name"`
	Spec        string     `json:"spec" yaml:"spec"`
	Enabled     bool       `json:"enabled" yaml:"enabled"`
	LastRun     *time.Time `json:"last_run,omitempty" yaml:"last_run,omitempty"`
	LastStatus  string     `json:"last_status,omitempty" yaml:"last_status,omitempty"`
	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
}
