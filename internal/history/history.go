// Package history turns recent git commits into synthetic chunks so
// questions about "why" changes happened can be answered alongside
// questions about the code itself.
package history

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Commit is one synthesized history entry. Content is the text that
// gets embedded and later shown to the generative model.
type Commit struct {
	Hash    string
	Author  string
	Date    time.Time
	Message string
	Content string
}

const defaultLimit = 50

// recordSep / fieldSep keep multi-line commit messages parseable.
const (
	fieldSep  = "\x1f"
	recordSep = "\x1e"
)

// Read walks up to limit commits of the repository at repoPath, newest
// first. A path that is not a git repository yields an empty slice, not
// an error. Individual malformed records are skipped. onProgress, if
// non-nil, is invoked after every commit so long walks can surface
// liveness to a streaming consumer.
func Read(ctx context.Context, repoPath string, limit int, onProgress func(done int)) []Commit {
	if limit <= 0 {
		limit = defaultLimit
	}

	format := strings.Join([]string{"%H", "%an", "%at", "%B"}, fieldSep) + recordSep
	cmd := exec.CommandContext(ctx, "git", "-C", repoPath, "log",
		fmt.Sprintf("--max-count=%d", limit),
		"--pretty=format:"+format)
	out, err := cmd.Output()
	if err != nil {
		// Not a repository, no commits, or git missing entirely.
		// All of these are expected soft conditions.
		return nil
	}

	var commits []Commit
	for _, record := range strings.Split(string(out), recordSep) {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}
		commit, ok := parseRecord(record)
		if !ok {
			continue
		}
		commits = append(commits, commit)
		if onProgress != nil {
			onProgress(len(commits))
		}
	}
	return commits
}

func parseRecord(record string) (Commit, bool) {
	parts := strings.SplitN(record, fieldSep, 4)
	if len(parts) != 4 {
		return Commit{}, false
	}
	hash := strings.TrimSpace(parts[0])
	if hash == "" {
		return Commit{}, false
	}
	author := strings.TrimSpace(parts[1])
	message := strings.TrimSpace(parts[3])

	var date time.Time
	if epoch, err := strconv.ParseInt(strings.TrimSpace(parts[2]), 10, 64); err == nil {
		date = time.Unix(epoch, 0).UTC()
	}

	content := fmt.Sprintf("COMMIT: %s\nAUTHOR: %s\nDATE: %s\nMSG: %s",
		hash, author, date.Format("2006-01-02"), message)

	return Commit{
		Hash:    hash,
		Author:  author,
		Date:    date,
		Message: message,
		Content: content,
	}, true
}
