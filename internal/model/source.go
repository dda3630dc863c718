package model

import (
	"fmt"
	"strings"
	"time"
)

const (
	SourceTypeLocal = "local"
	SourceTypeSSH   = "ssh"
)

// Source is a path, local or remote, to be backed up.
type Source struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	SourceType string    `json:"source_type"`
	Path       string    `json:"path"`
	SSHHost    *string   `json:"ssh_host,omitempty"`
	SSHPort    int       `json:"ssh_port"`
	SSHUser    *string   `json:"ssh_user,omitempty"`
	SSHKeyPath *string   `json:"ssh_key_path,omitempty"`
	UserID     string    `json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// FormattedPath returns the path in the form borg expects on the command line.
func (s *Source) FormattedPath() string {
	if s.SourceType == SourceTypeLocal || s.SSHHost == nil || s.SSHUser == nil {
		return s.Path
	}
	if s.SSHPort == 0 || s.SSHPort == 22 {
		return fmt.Sprintf("%s@%s:%s", *s.SSHUser, *s.SSHHost, s.Path)
	}
	return fmt.Sprintf("ssh://%s@%s:%d/%s", *s.SSHUser, *s.SSHHost, s.SSHPort, strings.TrimPrefix(s.Path, "/"))
}
