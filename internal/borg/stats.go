package borg

import (
	"strconv"
	"strings"
)

// sectionDelimiter separates the statistics block in borg --stats output.
const sectionDelimiter = "------------------------------------------------------------------------------"

// SizeTriple holds the three size columns of a statistics table row, as
// unit-suffixed strings exactly as borg printed them.
type SizeTriple struct {
	Original     string `json:"original"`
	Compressed   string `json:"compressed"`
	Deduplicated string `json:"deduplicated"`
}

// Stats holds the metrics extracted from borg create/prune --stats output.
// Every field is optional: a field borg did not print stays nil so callers can
// distinguish "zero" from "unknown".
type Stats struct {
	ArchiveName        *string     `json:"archive_name,omitempty"`
	ArchiveFingerprint *string     `json:"archive_fingerprint,omitempty"`
	TimeStart          *string     `json:"time_start,omitempty"`
	TimeEnd            *string     `json:"time_end,omitempty"`
	DurationSeconds    *float64    `json:"duration_seconds,omitempty"`
	NumberOfFiles      *int64      `json:"number_of_files,omitempty"`
	ThisArchive        *SizeTriple `json:"this_archive,omitempty"`
	AllArchives        *SizeTriple `json:"all_archives,omitempty"`
	UniqueChunks       *int64      `json:"unique_chunks,omitempty"`
	TotalChunks        *int64      `json:"total_chunks,omitempty"`
	CompressionRatio   *float64    `json:"compression_ratio,omitempty"`
	DeduplicationRatio *float64    `json:"deduplication_ratio,omitempty"`
}

// Empty reports whether nothing at all was extracted.
func (s *Stats) Empty() bool {
	return s.ArchiveName == nil && s.ArchiveFingerprint == nil &&
		s.TimeStart == nil && s.TimeEnd == nil && s.DurationSeconds == nil &&
		s.NumberOfFiles == nil && s.ThisArchive == nil && s.AllArchives == nil
}

// ExtractStats parses the statistics block out of line-oriented borg output.
// Output with a "[WARN] " prefix before the delimiter (the mock engine logs
// through a wrapper that tags stderr) is accepted and parses identically.
func ExtractStats(output string) *Stats {
	stats := &Stats{}

	var sections []string
	switch {
	case strings.Contains(output, sectionDelimiter):
		// Strip warning prefixes first so marker lines split cleanly.
		cleaned := strings.ReplaceAll(output, "[WARN] "+sectionDelimiter, sectionDelimiter)
		sections = strings.Split(cleaned, sectionDelimiter)
	default:
		return stats
	}

	var statsSection string
	for _, section := range sections {
		if strings.Contains(section, "This archive:") || strings.Contains(section, "All archives:") {
			statsSection = section
			break
		}
	}

	// Key-value fields live in the section before the table; scan everything.
	for _, line := range strings.Split(output, "\n") {
		parseKeyValueLine(stats, strings.TrimSpace(stripWarnPrefix(line)))
	}

	if statsSection != "" {
		for _, line := range strings.Split(statsSection, "\n") {
			line = strings.TrimSpace(stripWarnPrefix(line))
			if row, ok := strings.CutPrefix(line, "This archive:"); ok {
				stats.ThisArchive = parseSizeRow(row)
			} else if row, ok := strings.CutPrefix(line, "All archives:"); ok {
				stats.AllArchives = parseSizeRow(row)
			} else if row, ok := strings.CutPrefix(line, "Chunk index:"); ok {
				parseChunkRow(stats, row)
			}
		}
	}

	stats.CompressionRatio = ratio(stats.ThisArchive, func(t *SizeTriple) string { return t.Compressed })
	stats.DeduplicationRatio = ratio(stats.ThisArchive, func(t *SizeTriple) string { return t.Deduplicated })

	return stats
}

func stripWarnPrefix(line string) string {
	return strings.TrimPrefix(strings.TrimLeft(line, " \t"), "[WARN] ")
}

func parseKeyValueLine(stats *Stats, line string) {
	key, value, ok := strings.Cut(line, ":")
	if !ok {
		return
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}

	switch strings.TrimSpace(key) {
	case "Archive name":
		stats.ArchiveName = &value
	case "Archive fingerprint":
		stats.ArchiveFingerprint = &value
	case "Time (start)":
		stats.TimeStart = &value
	case "Time (end)":
		stats.TimeEnd = &value
	case "Duration":
		if d, ok := parseDuration(value); ok {
			stats.DurationSeconds = &d
		}
	case "Number of files":
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			stats.NumberOfFiles = &n
		}
	}
}

// parseDuration handles borg's "M minutes S.SS seconds" form as well as a
// bare seconds form.
func parseDuration(value string) (float64, bool) {
	if strings.Contains(value, "minutes") && strings.Contains(value, "seconds") {
		minPart, rest, _ := strings.Cut(value, "minutes")
		secPart, _, _ := strings.Cut(rest, "seconds")
		minutes, err1 := strconv.ParseFloat(strings.TrimSpace(minPart), 64)
		seconds, err2 := strconv.ParseFloat(strings.TrimSpace(secPart), 64)
		if err1 != nil || err2 != nil {
			return 0, false
		}
		return minutes*60 + seconds, true
	}
	if secPart, ok := strings.CutSuffix(value, "seconds"); ok {
		if s, err := strconv.ParseFloat(strings.TrimSpace(secPart), 64); err == nil {
			return s, true
		}
	}
	return 0, false
}

// parseSizeRow splits "1.00 GB  900.00 MB  500.00 MB" into a SizeTriple.
func parseSizeRow(row string) *SizeTriple {
	cols := strings.Fields(row)
	if len(cols) < 6 {
		return nil
	}
	return &SizeTriple{
		Original:     cols[0] + " " + cols[1],
		Compressed:   cols[2] + " " + cols[3],
		Deduplicated: cols[4] + " " + cols[5],
	}
}

func parseChunkRow(stats *Stats, row string) {
	cols := strings.Fields(row)
	if len(cols) < 2 {
		return
	}
	if n, err := strconv.ParseInt(cols[0], 10, 64); err == nil {
		stats.UniqueChunks = &n
	}
	if n, err := strconv.ParseInt(cols[1], 10, 64); err == nil {
		stats.TotalChunks = &n
	}
}

// ratio computes original/other for a triple, guarding every zero or
// unparsable operand. Nil means the ratio is unknown, never zero.
func ratio(t *SizeTriple, pick func(*SizeTriple) string) *float64 {
	if t == nil {
		return nil
	}
	original, err := ParseSize(t.Original)
	if err != nil || original <= 0 {
		return nil
	}
	other, err := ParseSize(pick(t))
	if err != nil || other <= 0 {
		return nil
	}
	r := float64(original) / float64(other)
	return &r
}
