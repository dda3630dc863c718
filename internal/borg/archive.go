package borg

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Archive is one snapshot as reported by `borg list --json`, normalized for
// display.
type Archive struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Time          string `json:"time"`
	SizeBytes     int64  `json:"size"`
	SizeFormatted string `json:"size_formatted"`
	Comment       string `json:"comment"`
	Hostname      string `json:"hostname,omitempty"`
	Username      string `json:"username,omitempty"`
}

type archiveListDoc struct {
	Archives []json.RawMessage `json:"archives"`
}

type rawArchive struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Time     string          `json:"time"`
	Size     json.RawMessage `json:"size"`
	Comment  string          `json:"comment"`
	Hostname string          `json:"hostname"`
	Username string          `json:"username"`
}

// ParseArchiveList decodes `borg list --json` output. Output that is not a
// single JSON document is scanned line by line for one that is, matching how
// some engine versions interleave progress lines with the final document.
func ParseArchiveList(output string) ([]Archive, error) {
	var doc archiveListDoc
	if err := json.Unmarshal([]byte(output), &doc); err != nil {
		found := false
		for _, line := range strings.Split(output, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if err := json.Unmarshal([]byte(line), &doc); err == nil && doc.Archives != nil {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("no archive list found in output")
		}
	}

	archives := make([]Archive, 0, len(doc.Archives))
	for _, raw := range doc.Archives {
		var ra rawArchive
		if err := json.Unmarshal(raw, &ra); err != nil {
			continue
		}
		archives = append(archives, normalizeArchive(ra))
	}
	return archives, nil
}

// normalizeArchive fills in missing fields so the display layer never sees
// holes: unnamed archives get a placeholder, missing times default to now,
// size strings with units are parsed down to bytes.
func normalizeArchive(ra rawArchive) Archive {
	a := Archive{
		ID:       ra.ID,
		Name:     ra.Name,
		Time:     ra.Time,
		Comment:  ra.Comment,
		Hostname: ra.Hostname,
		Username: ra.Username,
	}

	if a.Name == "" {
		a.Name = "Unnamed Archive"
	}
	if a.Time == "" {
		a.Time = time.Now().UTC().Format(time.RFC3339)
	}

	if len(ra.Size) > 0 {
		var n int64
		if err := json.Unmarshal(ra.Size, &n); err == nil {
			a.SizeBytes = n
		} else {
			var s string
			if err := json.Unmarshal(ra.Size, &s); err == nil {
				if bytes, err := ParseSize(s); err == nil {
					a.SizeBytes = bytes
				}
			}
		}
	}
	a.SizeFormatted = FormatSize(a.SizeBytes)

	return a
}
