package sqldeploy

import "strings"

// SplitBatches splits script text into batches on lines consisting solely of
// the separator token. Matching is case-insensitive and ignores surrounding
// whitespace. Separator lines belong to no batch, every batch is trimmed and
// empty batches are dropped, so consecutive separators collapse. Text
// without any separator line is returned whole as a single trimmed batch,
// as is any text when the separator token is empty.
func SplitBatches(sql, separator string) []string {
	if strings.TrimSpace(sql) == "" {
		return nil
	}

	if separator == "" {
		return []string{strings.TrimSpace(sql)}
	}

	normalized := strings.ReplaceAll(sql, "\r\n", "\n")

	var batches []string
	var current []string

	flush := func() {
		batch := strings.TrimSpace(strings.Join(current, "\n"))
		if batch != "" {
			batches = append(batches, batch)
		}
		current = current[:0]
	}

	for _, line := range strings.Split(normalized, "\n") {
		if strings.EqualFold(strings.TrimSpace(line), separator) {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return batches
}
