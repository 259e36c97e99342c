package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	apperrors "github.com/kurihiro0119/gitee-activity-harvester/internal/errors"
)

// resolveUser returns the full user record for a login with its
// organizations attached, memoized for the rest of the session. It
// returns nil without any network call for an empty login or when
// classified filtering is active; the latter is a privacy guarantee, not
// an optimization.
func (s *session) resolveUser(ctx context.Context, login string) (map[string]interface{}, error) {
	if login == "" || s.filterClassified {
		return nil, nil
	}

	if user, ok := s.users[login]; ok {
		return user, nil
	}

	body, err := s.client.User(ctx, login)
	if err != nil {
		return nil, err
	}
	var user map[string]interface{}
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("parse user %s: %w", login, err)
	}

	orgs, err := s.resolveOrgs(ctx, login)
	if err != nil {
		return nil, err
	}
	user["organizations"] = orgs

	s.users[login] = user
	return user, nil
}

// resolveUsers resolves a list of user reference payloads
func (s *session) resolveUsers(ctx context.Context, refs interface{}) ([]interface{}, error) {
	rawList, ok := refs.([]interface{})
	if !ok {
		return []interface{}{}, nil
	}
	users := []interface{}{}
	for _, ref := range rawList {
		user, err := s.resolveUser(ctx, loginOf(ref))
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// resolveOrgs fetches the public organizations of a user. The endpoint
// sometimes wrongly answers 404; that case becomes an empty list.
func (s *session) resolveOrgs(ctx context.Context, login string) ([]interface{}, error) {
	body, err := s.client.UserOrgs(ctx, login)
	if err != nil {
		if apperrors.IsNotFound(err) {
			slog.Error("can't get organizations for login", "login", login)
			return []interface{}{}, nil
		}
		return nil, err
	}
	var orgs []interface{}
	if err := json.Unmarshal(body, &orgs); err != nil {
		return nil, fmt.Errorf("parse organizations of %s: %w", login, err)
	}
	return orgs, nil
}
