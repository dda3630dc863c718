package borg

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// MockEngine produces canned borg output for development environments without
// the binary installed. Intentionally prints through a "[WARN] " prefix on the
// statistics delimiters, matching the wrapper the mock engine historically ran
// under, so the extractor's prefix handling stays exercised.
type MockEngine struct{}

func NewMockEngine() *MockEngine {
	return &MockEngine{}
}

func (m *MockEngine) Run(_ context.Context, cmd Command, onOutput func(string)) (string, error) {
	if len(cmd.Args) == 0 {
		return "", fmt.Errorf("empty command")
	}

	var output string
	switch cmd.Args[0] {
	case "create":
		output = m.createOutput(cmd)
	case "list":
		output = m.listOutput()
	case "prune":
		output = m.pruneOutput()
	default:
		return "", fmt.Errorf("mock engine: unsupported command %q", cmd.Args[0])
	}

	if onOutput != nil {
		onOutput(output)
	}
	return output, nil
}

func (m *MockEngine) Start(Command) (*Process, error) {
	return nil, fmt.Errorf("mock engine: mount requires a real borg binary")
}

func (m *MockEngine) createOutput(cmd Command) string {
	archive := "backup"
	repo := "repo"
	if len(cmd.Args) > 1 {
		if r, a, ok := strings.Cut(cmd.Args[1], "::"); ok {
			repo, archive = r, a
		}
	}
	now := time.Now().UTC()
	stamp := now.Format("Mon, 2006-01-02 15:04:05")

	return fmt.Sprintf(`[WARN] %[1]s
Repository: %[2]s
Archive name: %[3]s
Archive fingerprint: dac883078e9634dedd3b3958745fa858e7b23c268163f33c6a300fa7340b6ad8
Time (start): %[4]s
Time (end): %[4]s
Duration: 3 minutes 45.00 seconds
Number of files: 12345
[WARN] %[1]s
                Original size      Compressed size    Deduplicated size
This archive:       1.00 GB            900.00 MB            500.00 MB
All archives:       5.00 GB              4.50 GB              2.50 GB

Unique chunks         Total chunks
Chunk index:               50000               150000
[WARN] %[1]s
`, sectionDelimiter, repo, archive, stamp)
}

func (m *MockEngine) listOutput() string {
	now := time.Now().UTC()
	archives := make([]map[string]any, 0, 10)
	for i := 0; i < 10; i++ {
		t := now.AddDate(0, 0, -i)
		comment := fmt.Sprintf("Daily backup %d", i+1)
		if i >= 5 {
			comment = fmt.Sprintf("Weekly backup %d", i-4)
		}
		archives = append(archives, map[string]any{
			"id":       fmt.Sprintf("mock-id-%d", i),
			"name":     "backup-" + t.Format("2006-01-02_150405"),
			"time":     t.Format(time.RFC3339),
			"size":     int64(1024*1024) * int64(500-i*20),
			"comment":  comment,
			"hostname": "mock-server",
			"username": "mockuser",
		})
	}
	doc, _ := json.Marshal(map[string]any{"archives": archives})
	return string(doc)
}

func (m *MockEngine) pruneOutput() string {
	return fmt.Sprintf(`Keeping archive: backup-2023-06-15_120000
Pruning archive: backup-2023-01-01_120000
%[1]s
                Original size      Compressed size    Deduplicated size
Deleted data:       1.00 GB            900.00 MB            500.00 MB
All archives:       4.00 GB              3.60 GB              2.00 GB
%[1]s
`, sectionDelimiter)
}
