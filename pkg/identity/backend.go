package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"ghbridge/pkg/storage"
)

// User is one entry of the GitHub to Discord map.
type User struct {
	GitHubID  int64
	Login     string
	DiscordID string
}

// UserBackend loads and persists the user map.
type UserBackend interface {
	LoadUsers(ctx context.Context) ([]User, error)
	SaveUsers(ctx context.Context, users []User) error
}

// MuteBackend loads and persists mute rules.
type MuteBackend interface {
	LoadMutes(ctx context.Context) ([]MuteRule, error)
	SaveMutes(ctx context.Context, rules []MuteRule) error
}

// DocumentBackend keeps identity data in a JSON document. The user map is
// an object keyed by GitHub user id whose values are either a Discord id or
// {"discord_id": ..., "login": ...}. Mutes are an array whose entries are a
// MuteRule object or a bare user id.
type DocumentBackend struct {
	Source Source
}

type userEntry struct {
	DiscordID string `json:"discord_id"`
	Login     string `json:"login,omitempty"`
}

func (b DocumentBackend) LoadUsers(ctx context.Context) ([]User, error) {
	data, err := b.Source.Read(ctx)
	if err != nil {
		return nil, err
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse user map %s: %w", b.Source, err)
	}

	users := make([]User, 0, len(doc))
	for key, raw := range doc {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse user map %s: invalid github id %q", b.Source, key)
		}
		user := User{GitHubID: id}
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '{' {
			var entry userEntry
			if err := json.Unmarshal(raw, &entry); err != nil {
				return nil, fmt.Errorf("parse user map %s: github id %s: %w", b.Source, key, err)
			}
			user.DiscordID, user.Login = entry.DiscordID, entry.Login
		} else if err := json.Unmarshal(raw, &user.DiscordID); err != nil {
			return nil, fmt.Errorf("parse user map %s: github id %s: %w", b.Source, key, err)
		}
		users = append(users, user)
	}
	sortUsers(users)
	return users, nil
}

func (b DocumentBackend) SaveUsers(ctx context.Context, users []User) error {
	doc := make(map[string]interface{}, len(users))
	for _, user := range users {
		key := strconv.FormatInt(user.GitHubID, 10)
		if user.Login == "" {
			doc[key] = user.DiscordID
			continue
		}
		doc[key] = userEntry{DiscordID: user.DiscordID, Login: user.Login}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return b.Source.Write(ctx, append(data, '\n'))
}

func (b DocumentBackend) LoadMutes(ctx context.Context) ([]MuteRule, error) {
	data, err := b.Source.Read(ctx)
	if err != nil {
		return nil, err
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse mutes %s: %w", b.Source, err)
	}
	rules := make([]MuteRule, 0, len(entries))
	for i, raw := range entries {
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '{' {
			var rule MuteRule
			if err := json.Unmarshal(raw, &rule); err != nil {
				return nil, fmt.Errorf("parse mutes %s: entry %d: %w", b.Source, i, err)
			}
			rules = append(rules, rule)
			continue
		}
		// A bare id mutes everything from that user.
		var id json.Number
		if err := json.Unmarshal(raw, &id); err != nil {
			return nil, fmt.Errorf("parse mutes %s: entry %d: %w", b.Source, i, err)
		}
		userID, err := id.Int64()
		if err != nil {
			return nil, fmt.Errorf("parse mutes %s: entry %d: invalid user id %s", b.Source, i, raw)
		}
		rules = append(rules, MuteRule{UserID: userID, Type: MuteAll})
	}
	return rules, nil
}

func (b DocumentBackend) SaveMutes(ctx context.Context, rules []MuteRule) error {
	if rules == nil {
		rules = []MuteRule{}
	}
	data, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return err
	}
	return b.Source.Write(ctx, append(data, '\n'))
}

// SQLUserBackend keeps the user map in a storage.UserStore table.
type SQLUserBackend struct {
	Store storage.UserStore
}

func (b SQLUserBackend) LoadUsers(ctx context.Context) ([]User, error) {
	records, err := b.Store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]User, 0, len(records))
	for _, record := range records {
		id, err := strconv.ParseInt(record.GitHubID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("user row: invalid github id %q", record.GitHubID)
		}
		users = append(users, User{GitHubID: id, Login: record.Login, DiscordID: record.DiscordID})
	}
	return users, nil
}

// SaveUsers upserts every user and deletes rows no longer present.
func (b SQLUserBackend) SaveUsers(ctx context.Context, users []User) error {
	existing, err := b.Store.ListUsers(ctx)
	if err != nil {
		return err
	}
	keep := make(map[string]struct{}, len(users))
	for _, user := range users {
		id := strconv.FormatInt(user.GitHubID, 10)
		keep[id] = struct{}{}
		if err := b.Store.UpsertUser(ctx, storage.UserRecord{
			GitHubID:  id,
			Login:     user.Login,
			DiscordID: user.DiscordID,
		}); err != nil {
			return err
		}
	}
	for _, record := range existing {
		if _, ok := keep[record.GitHubID]; ok {
			continue
		}
		if err := b.Store.DeleteUser(ctx, record.GitHubID); err != nil {
			return err
		}
	}
	return nil
}

// SQLMuteBackend keeps mute rules in a storage.MuteStore table, one row per
// muted event.
type SQLMuteBackend struct {
	Store storage.MuteStore
}

func (b SQLMuteBackend) LoadMutes(ctx context.Context) ([]MuteRule, error) {
	records, err := b.Store.ListMutes(ctx)
	if err != nil {
		return nil, err
	}
	var rules []MuteRule
	index := make(map[int64]int)
	for _, record := range records {
		id, err := strconv.ParseInt(record.GitHubID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("mute row: invalid github id %q", record.GitHubID)
		}
		i, ok := index[id]
		if !ok {
			i = len(rules)
			index[id] = i
			mode := MuteType(record.Mode)
			if mode == "" {
				mode = MuteAll
			}
			rules = append(rules, MuteRule{UserID: id, Type: mode})
		}
		if record.Event != "" {
			rules[i].Events = append(rules[i].Events, MutedEvent{EventName: record.Event, Actions: record.Actions})
		}
	}
	return rules, nil
}

// SaveMutes replaces the rows of every user in rules and clears users that
// are no longer listed.
func (b SQLMuteBackend) SaveMutes(ctx context.Context, rules []MuteRule) error {
	existing, err := b.Store.ListMutes(ctx)
	if err != nil {
		return err
	}
	keep := make(map[string]struct{}, len(rules))
	for _, rule := range rules {
		id := strconv.FormatInt(rule.UserID, 10)
		keep[id] = struct{}{}
		records := make([]storage.MuteRecord, 0, len(rule.Events)+1)
		if len(rule.Events) == 0 {
			records = append(records, storage.MuteRecord{Mode: string(rule.Type)})
		}
		for _, event := range rule.Events {
			records = append(records, storage.MuteRecord{
				Mode:    string(rule.Type),
				Event:   event.EventName,
				Actions: event.Actions,
			})
		}
		if err := b.Store.ReplaceMutes(ctx, id, records); err != nil {
			return err
		}
	}
	for _, record := range existing {
		if _, ok := keep[record.GitHubID]; ok {
			continue
		}
		keep[record.GitHubID] = struct{}{}
		if err := b.Store.ReplaceMutes(ctx, record.GitHubID, nil); err != nil {
			return err
		}
	}
	return nil
}

func sortUsers(users []User) {
	sort.Slice(users, func(i, j int) bool { return users[i].GitHubID < users[j].GitHubID })
}
