package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	apperrors "github.com/kurihiro0119/gitee-activity-harvester/internal/errors"
)

// targetIssueFields are the raw issue fields that trigger enrichment
var targetIssueFields = []string{"user", "assignee", "collaborators", "comments"}

// targetPullFields are the raw pull request fields that trigger
// enrichment. "number" is not a lookup itself; it triggers the compound
// derived fields (review comments, commits, merged_by).
var targetPullFields = []string{"user", "assignees", "testers", "number"}

// mergedActionType marks a merge event in the pull request action log
const mergedActionType = "merged_pr"

// enrichIssue populates the _data fields of a raw issue
func (s *session) enrichIssue(ctx context.Context, issue map[string]interface{}) error {
	issue["user_data"] = map[string]interface{}{}
	issue["assignee_data"] = map[string]interface{}{}
	issue["assignees_data"] = []interface{}{}
	issue["comments_data"] = []interface{}{}

	for _, field := range targetIssueFields {
		if isFalsy(issue[field]) {
			continue
		}
		// Personal data fields keep their empty placeholders when
		// classified filtering is on; the calls are skipped, not the
		// results stripped.
		if s.filterClassified && field != "comments" {
			continue
		}
		switch field {
		case "user", "assignee":
			user, err := s.resolveUser(ctx, loginOf(issue[field]))
			if err != nil {
				return err
			}
			issue[field+"_data"] = user
		case "collaborators":
			users, err := s.resolveUsers(ctx, issue[field])
			if err != nil {
				return err
			}
			issue["collaborators_data"] = users
		case "comments":
			comments, err := s.issueComments(ctx, numberOf(issue))
			if err != nil {
				return err
			}
			issue["comments_data"] = comments
		}
	}
	return nil
}

// enrichPullRequest populates the _data fields of a raw pull request
func (s *session) enrichPullRequest(ctx context.Context, pull map[string]interface{}) error {
	pull["user_data"] = map[string]interface{}{}
	pull["review_comments_data"] = map[string]interface{}{}
	pull["reviews_data"] = []interface{}{}
	pull["merged_by_data"] = []interface{}{}
	pull["commits_data"] = []interface{}{}

	for _, field := range targetPullFields {
		if isFalsy(pull[field]) {
			continue
		}
		if s.filterClassified && field != "number" {
			continue
		}
		switch field {
		case "user":
			user, err := s.resolveUser(ctx, loginOf(pull[field]))
			if err != nil {
				return err
			}
			pull["user_data"] = user
		case "assignees", "testers":
			users, err := s.resolveUsers(ctx, pull[field])
			if err != nil {
				return err
			}
			pull[field+"_data"] = users
		case "number":
			number := numberOf(pull)

			reviewComments, err := s.pullReviewComments(ctx, number)
			if err != nil {
				return err
			}
			pull["review_comments_data"] = reviewComments

			commits, err := s.pullCommits(ctx, number)
			if err != nil {
				return err
			}
			pull["commits_data"] = commits

			mergedBy, err := s.pullMergedBy(ctx, number)
			if err != nil {
				return err
			}
			pull["merged_by"] = mergedBy
			if mergedBy != "" && !s.filterClassified {
				user, err := s.resolveUser(ctx, mergedBy)
				if err != nil {
					return err
				}
				pull["merged_by_data"] = user
			}
		}
	}
	return nil
}

// issueComments fetches every comment of an issue with resolved users
func (s *session) issueComments(ctx context.Context, issueNumber string) ([]interface{}, error) {
	comments := []interface{}{}
	for page, err := range s.client.IssueComments(ctx, issueNumber) {
		if err != nil {
			return nil, err
		}
		var raw []map[string]interface{}
		if err := json.Unmarshal(page.Body, &raw); err != nil {
			return nil, fmt.Errorf("parse comments of issue %s: %w", issueNumber, err)
		}
		for _, comment := range raw {
			if err := s.attachCommentUser(ctx, comment); err != nil {
				return nil, err
			}
			comments = append(comments, comment)
		}
	}
	return comments, nil
}

// pullReviewComments fetches the review comments of a pull request.
// The API wrongly answers 404 for some pull requests; that case becomes
// an empty list.
func (s *session) pullReviewComments(ctx context.Context, prNumber string) ([]interface{}, error) {
	comments := []interface{}{}
	for page, err := range s.client.PullReviewComments(ctx, prNumber) {
		if err != nil {
			if apperrors.IsNotFound(err) {
				slog.Error("can't get review comments for pull request", "number", prNumber)
				return comments, nil
			}
			return nil, err
		}
		var raw []map[string]interface{}
		if err := json.Unmarshal(page.Body, &raw); err != nil {
			return nil, fmt.Errorf("parse review comments of pull request %s: %w", prNumber, err)
		}
		for _, comment := range raw {
			if err := s.attachCommentUser(ctx, comment); err != nil {
				return nil, err
			}
			comments = append(comments, comment)
		}
	}
	return comments, nil
}

// pullCommits fetches the commit hashes of a pull request.
// The API wrongly answers 404 for some pull requests; that case becomes
// an empty list.
func (s *session) pullCommits(ctx context.Context, prNumber string) ([]interface{}, error) {
	hashes := []interface{}{}
	for page, err := range s.client.PullCommits(ctx, prNumber) {
		if err != nil {
			if apperrors.IsNotFound(err) {
				slog.Error("can't get commits for pull request", "number", prNumber)
				return hashes, nil
			}
			return nil, err
		}
		var raw []map[string]interface{}
		if err := json.Unmarshal(page.Body, &raw); err != nil {
			return nil, fmt.Errorf("parse commits of pull request %s: %w", prNumber, err)
		}
		for _, commit := range raw {
			if sha, ok := commit["sha"].(string); ok {
				hashes = append(hashes, sha)
			}
		}
	}
	return hashes, nil
}

// pullMergedBy scans the action log for the merger's login. Within a page
// the first merge entry wins; a match on a later page overwrites the match
// from an earlier page, so the result is the last page's first match.
func (s *session) pullMergedBy(ctx context.Context, prNumber string) (string, error) {
	result := ""
	for page, err := range s.client.PullActionLogs(ctx, prNumber) {
		if err != nil {
			return "", err
		}
		var logs []map[string]interface{}
		if err := json.Unmarshal(page.Body, &logs); err != nil {
			return "", fmt.Errorf("parse action log of pull request %s: %w", prNumber, err)
		}
		for _, entry := range logs {
			if entry["action_type"] == mergedActionType {
				if login := loginOf(entry["user"]); login != "" {
					result = login
				}
				break
			}
		}
	}
	return result, nil
}

// attachCommentUser resolves the user of a comment payload. A missing
// user reference is not an error: the resolved field is set to nil and a
// warning is recorded.
func (s *session) attachCommentUser(ctx context.Context, comment map[string]interface{}) error {
	login := loginOf(comment["user"])
	if login == "" && !s.filterClassified {
		slog.Warn("missing user info for comment", "url", comment["url"])
		comment["user_data"] = nil
		return nil
	}
	user, err := s.resolveUser(ctx, login)
	if err != nil {
		return err
	}
	comment["user_data"] = user
	return nil
}

// isFalsy mirrors the truthiness rules the raw payload fields follow:
// nil, empty strings/collections, zero numbers and false skip enrichment
func isFalsy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case bool:
		return !val
	case string:
		return val == ""
	case float64:
		return val == 0
	case []interface{}:
		return len(val) == 0
	case map[string]interface{}:
		return len(val) == 0
	}
	return false
}

// loginOf extracts the login from a user reference payload
func loginOf(v interface{}) string {
	ref, ok := v.(map[string]interface{})
	if !ok {
		return ""
	}
	login, _ := ref["login"].(string)
	return login
}

// numberOf renders an item's number as a path segment. Gitee issue
// numbers are alphanumeric strings while pull request numbers are numeric.
func numberOf(item map[string]interface{}) string {
	switch n := item["number"].(type) {
	case string:
		return n
	case float64:
		return strconv.FormatInt(int64(n), 10)
	}
	return ""
}
